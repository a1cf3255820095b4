package shell

import (
	"context"
	"flag"
	"strings"
	"time"

	"github.com/abiosoft/ishell"
)

func (s *Shell) pollHandler(c *ishell.Context) {
	var timeout time.Duration
	pollFlags := flag.NewFlagSet("poll", flag.ContinueOnError)
	pollFlags.DurationVar(&timeout, "timeout", 30*time.Second,
		"How long to wait for the order's authorizations to settle")

	if err := pollFlags.Parse(c.Args); err != nil {
		if err != flag.ErrHelp {
			c.Printf("poll: error parsing input flags: %s\n", err.Error())
		}
		return
	}

	order, err := s.pickOrder(pollFlags.Args())
	if err != nil {
		c.Printf("poll: %s\n", err.Error())
		return
	}

	remaining, err := s.client.Wait(context.Background(), order, timeout)
	if err != nil {
		c.Printf("poll: %s\n", err.Error())
		return
	}

	if len(remaining) == 0 {
		c.Printf("poll: all authorizations for %q are valid\n", order.ID)
		return
	}
	for _, authz := range remaining {
		c.Printf("poll: %s (%s) is %q\n", authz.ID, authz.Identifier.Value, authz.Status)
	}
}

func (s *Shell) finalizeHandler(c *ishell.Context) {
	var commonName string
	finalizeFlags := flag.NewFlagSet("finalize", flag.ContinueOnError)
	finalizeFlags.StringVar(&commonName, "cn", "",
		"Common name for the CSR (defaults to the order's first identifier)")

	if err := finalizeFlags.Parse(c.Args); err != nil {
		if err != flag.ErrHelp {
			c.Printf("finalize: error parsing input flags: %s\n", err.Error())
		}
		return
	}

	order, err := s.pickOrder(finalizeFlags.Args())
	if err != nil {
		c.Printf("finalize: %s\n", err.Error())
		return
	}

	var names []string
	for _, ident := range order.Identifiers {
		names = append(names, ident.Value)
	}

	_, csrPEM, err := s.client.CSR(commonName, names, "")
	if err != nil {
		c.Printf("finalize: error creating CSR: %s\n", err.Error())
		return
	}

	updated, err := s.client.FinalizeOrder(context.Background(), order, string(csrPEM))
	if err != nil {
		c.Printf("finalize: %s\n", err.Error())
		return
	}
	*order = *updated

	c.Printf("finalize: order %q is %q\n", order.ID, order.Status)
	c.Printf("finalize: CSR key saved under ID %q\n", strings.Join(names, ","))
}

func (s *Shell) getCertHandler(c *ishell.Context) {
	order, err := s.pickOrder(c.Args)
	if err != nil {
		c.Printf("getCert: %s\n", err.Error())
		return
	}

	ctx := context.Background()
	if order.Certificate == "" {
		// The certificate URL only appears once the order is valid.
		if err := s.client.UpdateOrder(ctx, order); err != nil {
			c.Printf("getCert: %s\n", err.Error())
			return
		}
	}

	chainPEM, err := s.client.FetchCertificate(ctx, order)
	if err != nil {
		c.Printf("getCert: %s\n", err.Error())
		return
	}
	c.Printf("%s", chainPEM)
}
