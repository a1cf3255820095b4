package shell

import (
	"context"
	"encoding/json"
	"flag"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/mlake/certflow/acme/resources"
)

func (s *Shell) newOrderHandler(c *ishell.Context) {
	var notBefore, notAfter string
	orderFlags := flag.NewFlagSet("newOrder", flag.ContinueOnError)
	orderFlags.StringVar(&notBefore, "notBefore", "", "Optional RFC 3339 notBefore for the certificate")
	orderFlags.StringVar(&notAfter, "notAfter", "", "Optional RFC 3339 notAfter for the certificate")

	if err := orderFlags.Parse(c.Args); err != nil {
		if err != flag.ErrHelp {
			c.Printf("newOrder: error parsing input flags: %s\n", err.Error())
		}
		return
	}

	domains := orderFlags.Args()
	if len(domains) == 0 {
		c.Printf("newOrder: you must specify at least one domain\n")
		return
	}

	identifiers := make([]resources.Identifier, len(domains))
	for i, domain := range domains {
		identifiers[i] = resources.Identifier{Type: "dns", Value: domain}
	}

	order, err := s.client.CreateOrder(context.Background(), identifiers, notBefore, notAfter)
	if err != nil {
		c.Printf("newOrder: %s\n", err.Error())
		return
	}

	s.orders = append(s.orders, order)
	c.Printf("Order %d created: %s (status %q)\n", len(s.orders)-1, order.ID, order.Status)
}

func (s *Shell) ordersHandler(c *ishell.Context) {
	if len(s.orders) == 0 {
		c.Printf("No orders have been created in this session\n")
		return
	}
	for i, order := range s.orders {
		var names []string
		for _, ident := range order.Identifiers {
			names = append(names, ident.Value)
		}
		c.Printf("%3d) %s [%s] %s\n", i, order.ID, strings.Join(names, ", "), order.Status)
	}
}

func (s *Shell) getOrderHandler(c *ishell.Context) {
	order, err := s.pickOrder(c.Args)
	if err != nil {
		c.Printf("getOrder: %s\n", err.Error())
		return
	}

	if err := s.client.UpdateOrder(context.Background(), order); err != nil {
		c.Printf("getOrder: %s\n", err.Error())
		return
	}

	orderJSON, err := json.MarshalIndent(order, "", "  ")
	if err != nil {
		c.Printf("getOrder: error marshaling order: %s\n", err.Error())
		return
	}
	c.Printf("%s\n%s\n", order.ID, orderJSON)
}

func (s *Shell) authzHandler(c *ishell.Context) {
	order, err := s.pickOrder(c.Args)
	if err != nil {
		c.Printf("authz: %s\n", err.Error())
		return
	}

	authzs, err := s.client.GetAuthorizations(context.Background(), order)
	if err != nil {
		c.Printf("authz: %s\n", err.Error())
		return
	}

	for _, authz := range authzs {
		ident := authz.Identifier.Value
		if authz.Wildcard {
			ident = "*." + ident
		}
		c.Printf("%s (%s) %s\n", authz.ID, ident, authz.Status)
		for _, chall := range authz.Challenges {
			c.Printf("    %-12s %-10s %s\n", chall.Type, chall.Status, chall.URL)
		}
	}
}

func (s *Shell) whoamiHandler(c *ishell.Context) {
	acct := s.client.ActiveAccount
	if acct == nil {
		c.Printf("whoami: no active account\n")
		return
	}
	c.Printf("Account URL: %s\n", acct.ID)
	thumbprint, err := acct.Thumbprint()
	if err != nil {
		c.Printf("whoami: error computing thumbprint: %s\n", err.Error())
		return
	}
	c.Printf("Key thumbprint: %s\n", thumbprint)
}
