package shell

import (
	"context"
	"flag"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/mlake/certflow/acme"
	"github.com/mlake/certflow/acme/resources"
)

func (s *Shell) solveHandler(c *ishell.Context) {
	var challType string
	var printValues bool
	solveFlags := flag.NewFlagSet("solve", flag.ContinueOnError)
	solveFlags.StringVar(&challType, "challengeType", acme.CHALLENGE_TYPE_HTTP_01,
		"Challenge type to solve (wildcard identifiers always use dns-01)")
	solveFlags.BoolVar(&printValues, "printValues", false,
		"Print the computed challenge responses before publishing")

	if err := solveFlags.Parse(c.Args); err != nil {
		if err != flag.ErrHelp {
			c.Printf("solve: error parsing input flags: %s\n", err.Error())
		}
		return
	}

	order, err := s.pickOrder(solveFlags.Args())
	if err != nil {
		c.Printf("solve: %s\n", err.Error())
		return
	}

	ctx := context.Background()
	descriptions, err := s.client.DescribePendingChallenges(ctx, order, challType)
	if err != nil {
		c.Printf("solve: %s\n", err.Error())
		return
	}
	if len(descriptions) == 0 {
		c.Printf("solve: order has no pending %q challenges\n", challType)
		return
	}

	// Publish each response with the challenge response server, then notify
	// the ACME server that validation can begin.
	for _, desc := range descriptions {
		if printValues {
			c.Printf("%s: %s -> %s\n", desc.Type, desc.Endpoint, desc.Value)
		}
		s.publish(desc)

		chall, err := s.client.ValidateChallenge(ctx, desc.URL)
		if err != nil {
			c.Printf("solve: failed to trigger validation of %q: %s\n", desc.URL, err.Error())
			return
		}
		c.Printf("solve: %q challenge %q started (status %q)\n",
			chall.Type, chall.URL, chall.Status)
	}
}

// publish adds a challenge response to the in-process challenge response
// server. The description's endpoint and value are exactly what must be
// served: a TXT record name/value for dns-01, a token path/body for http-01.
func (s *Shell) publish(desc resources.ChallengeDescription) {
	switch desc.Type {
	case acme.CHALLENGE_TYPE_DNS_01:
		// The DNS server matches TXT queries against fully qualified names.
		s.challSrv.AddDNSOneChallenge(desc.Endpoint+".", desc.Value)
	case acme.CHALLENGE_TYPE_HTTP_01:
		token := desc.Endpoint[strings.LastIndex(desc.Endpoint, "/")+1:]
		s.challSrv.AddHTTPOneChallenge(token, desc.Value)
	}
}
