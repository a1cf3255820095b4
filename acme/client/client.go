// Package client provides a low-level ACME v2 client: the signed-envelope
// plumbing plus the order/authorization/challenge lifecycle operations needed
// to drive a certificate order from creation to issuance.
package client

import (
	"context"
	"crypto"
	"fmt"
	"log"
	"net/mail"
	"net/url"
	"strings"

	"github.com/mlake/certflow/acme/resources"
	acmenet "github.com/mlake/certflow/net"
)

// Client allows interaction with an ACME server. Each client uses the
// ActiveAccount to authenticate requests to the ACME server. In addition to
// the account a client maintains a map of Keys containing private keys that
// can be used for signing CSRs when finalizing orders (which SHOULD NOT be
// the account keypair, see https://tools.ietf.org/html/rfc8555#section-11.1).
//
// The Client's DirectoryURL field is a parsed *url.URL for the ACME server's
// directory. The client configures itself with the correct URLs for ACME
// operations using the directory resource accessed at this URL. See
// https://tools.ietf.org/html/rfc8555#section-7.1.1
//
// The only mutable state shared across operations is the cached directory,
// the most recent replay nonce, and the account's lazily resolved URL and
// thumbprint. All are idempotent to recompute. Independent operations for
// the same account must not be issued concurrently: each signed request
// consumes the most recent nonce, so two requests in flight race for it.
type Client struct {
	// A parsed *url.URL pointer for the ACME server's directory URL.
	DirectoryURL *url.URL
	// A pointer to the Account used for signing envelopes for ACME requests.
	ActiveAccount *resources.Account
	// A map of key identifiers to private keys. These keys are used for
	// signing operations that shouldn't use the Account's key, most often
	// CSR signing during finalization.
	Keys map[string]crypto.Signer
	// Options controlling the Client's output.
	Output OutputOptions
	// The net object is used to make HTTP GET/POST/HEAD requests to the ACME
	// server.
	net *acmenet.ACMENet
	// directory is an in-memory representation of the ACME server's
	// directory object.
	directory map[string]interface{}
	// nonce is the value of the last-seen Replay-Nonce header from the ACME
	// server's HTTP responses. It is consumed by the next signing operation.
	nonce string
}

// OutputOptions holds runtime output settings for a client.
type OutputOptions struct {
	// Print all HTTP requests made to the ACME server.
	PrintRequests bool
	// Print all HTTP responses from the ACME server.
	PrintResponses bool
	// Print the JSON serialization of all signed envelopes produced.
	PrintEnvelopes bool
	// Print nonce refreshes.
	PrintNonceUpdates bool
}

// ClientConfig contains configuration options provided to NewClient when
// creating a Client instance.
type ClientConfig struct {
	// A fully qualified URL for the ACME server's directory resource. Must
	// include an HTTP/HTTPS protocol prefix. Mandatory.
	DirectoryURL string
	// An optional file path to one or more PEM encoded CA certificates to be
	// used as trust roots for HTTPS requests to the ACME server (e.g.
	// Pebble's test/certs/pebble.minica.pem). If empty the system roots are
	// used.
	CACert string
	// An optional email address used as the "mailto:" contact when
	// AutoRegister creates an account.
	ContactEmail string
	// An optional file path to a previously saved account. It will be loaded
	// and used as the ActiveAccount. If provided this field takes precedence
	// over AutoRegister and will prevent an account from being registered
	// even if AutoRegister is true.
	AccountPath string
	// If AutoRegister is true NewClient will automatically create a new
	// Account with the ACME server and use it as the ActiveAccount.
	AutoRegister bool
	// Initial OutputOptions settings.
	InitialOutput OutputOptions
}

// normalize validates a ClientConfig.
func (conf *ClientConfig) normalize() error {
	// Clean up any junk whitespace that might have snuck in
	conf.DirectoryURL = strings.TrimSpace(conf.DirectoryURL)
	conf.ContactEmail = strings.TrimSpace(conf.ContactEmail)
	conf.AccountPath = strings.TrimSpace(conf.AccountPath)

	if conf.DirectoryURL == "" {
		return fmt.Errorf("DirectoryURL must not be empty")
	}

	if _, err := url.Parse(conf.DirectoryURL); err != nil {
		return fmt.Errorf("DirectoryURL invalid: %s", err.Error())
	}

	if conf.ContactEmail != "" {
		addr, err := mail.ParseAddress(conf.ContactEmail)
		if err != nil {
			return fmt.Errorf("ContactEmail is invalid: %s", err.Error())
		}
		conf.ContactEmail = addr.Address
	}

	return nil
}

// NewClient creates a Client instance from the given ClientConfig. If the
// config is not valid or if another error occurs it will be returned along
// with a nil Client.
func NewClient(config ClientConfig) (*Client, error) {
	if err := config.normalize(); err != nil {
		return nil, err
	}

	net, err := acmenet.New(config.CACert)
	if err != nil {
		return nil, fmt.Errorf("unable to create ACME net client: %s", err)
	}

	// NOTE: it's safe to throw away the returned err here because we check
	// that url.Parse will succeed in config.normalize() above.
	dirURL, _ := url.Parse(config.DirectoryURL)

	client := &Client{
		DirectoryURL: dirURL,
		Keys:         map[string]crypto.Signer{},
		Output:       config.InitialOutput,
		net:          net,
	}

	ctx := context.Background()

	// If requested, try to load an existing account from disk.
	if config.AccountPath != "" {
		log.Printf("Trying to restore account from %q\n", config.AccountPath)
		acct, err := resources.RestoreAccount(config.AccountPath)

		// If there was an error loading the account and auto-register is not
		// specified then return an error. We have no account to use.
		if err != nil && !config.AutoRegister {
			return nil, fmt.Errorf("error restoring account from %q: %s",
				config.AccountPath, err)
		} else if err != nil && config.AutoRegister {
			log.Printf("No account restored\n")
		}

		if err == nil {
			client.Keys[acct.ID] = acct.Signer
			client.ActiveAccount = acct
			log.Printf("Restored account with ID %q (Contact %s)\n",
				acct.ID, acct.Contact)
		}
	}

	// If there is no active account and auto-register is enabled then create
	// a new account.
	if config.AutoRegister && client.ActiveAccountID() == "" {
		log.Printf("AutoRegister is enabled and there is no loaded account. " +
			"Creating a new account\n")
		acct, err := resources.NewAccount([]string{config.ContactEmail}, nil)
		if err != nil {
			return nil, err
		}
		client.ActiveAccount = acct
		if err := client.CreateAccount(ctx, acct); err != nil {
			return nil, err
		}
		client.Keys[acct.ID] = acct.Signer

		if config.AccountPath != "" {
			if err := resources.SaveAccount(config.AccountPath, acct); err != nil {
				return nil, fmt.Errorf("error saving account to %q: %s",
					config.AccountPath, err)
			}
			log.Printf("Saved account data to %q", config.AccountPath)
		}
	} else if config.AutoRegister && client.ActiveAccountID() != "" {
		log.Printf("AutoRegister is enabled but there is a loaded account (ID: %q). "+
			"Skipping creating a new account\n", client.ActiveAccount.ID)
	} else {
		log.Printf("AutoRegister is disabled\n")
	}

	if client.directory == nil {
		if err := client.UpdateDirectory(ctx); err != nil {
			return nil, err
		}
	}

	if acctID := client.ActiveAccountID(); acctID != "" {
		log.Printf("Active account: %q\n", acctID)
	}

	return client, nil
}

// ActiveAccountID returns the server assigned URL of the ActiveAccount. If
// the ActiveAccount is nil, or has not yet been created with the ACME server,
// an empty string is returned.
func (c *Client) ActiveAccountID() string {
	if c.ActiveAccount == nil {
		return ""
	}
	return c.ActiveAccount.ID
}

func (c *Client) Printf(format string, vals ...interface{}) {
	log.Printf(format, vals...)
}
