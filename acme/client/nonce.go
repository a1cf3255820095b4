package client

import (
	"context"
	"log"
	"net/http"

	"github.com/mlake/certflow/acme"
)

// Nonce returns a fresh anti-replay token for the next signed request,
// consuming the stored nonce if one is present and fetching a replacement
// from the newNonce endpoint otherwise. Nonces are single use: each call
// hands out a value exactly once.
//
// See https://tools.ietf.org/html/rfc8555#section-6.5
func (c *Client) Nonce(ctx context.Context) (string, error) {
	n := c.nonce
	c.nonce = ""
	if n != "" {
		return n, nil
	}
	if err := c.RefreshNonce(ctx); err != nil {
		return "", err
	}
	n, c.nonce = c.nonce, ""
	return n, nil
}

// RefreshNonce fetches a new nonce from the ACME server's newNonce endpoint
// and stores it for the next Nonce call.
//
// See https://tools.ietf.org/html/rfc8555#section-7.2
func (c *Client) RefreshNonce(ctx context.Context) error {
	nonceURL, ok := c.GetEndpointURL(ctx, acme.NEW_NONCE_ENDPOINT)
	if !ok {
		return acme.ProtocolError{
			Operation: "refreshNonce",
			Detail:    "ACME server directory is missing a " + acme.NEW_NONCE_ENDPOINT + " endpoint",
		}
	}

	if c.Output.PrintNonceUpdates {
		log.Printf("Sending HTTP HEAD request to %q\n", nonceURL)
	}

	resp, err := c.net.HeadURL(ctx, nonceURL)
	if err != nil {
		return acme.TransportError{Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return acme.ProtocolError{
			Operation:  "refreshNonce",
			Detail:     "unexpected " + acme.NEW_NONCE_ENDPOINT + " response",
			StatusCode: resp.StatusCode,
		}
	}

	nonce := resp.Header.Get(acme.REPLAY_NONCE_HEADER)
	if nonce == "" {
		return acme.ProtocolError{
			Operation: "refreshNonce",
			Detail:    acme.NEW_NONCE_ENDPOINT + " response had no " + acme.REPLAY_NONCE_HEADER + " header",
		}
	}

	c.nonce = nonce
	if c.Output.PrintNonceUpdates {
		log.Printf("Updated nonce to %q", nonce)
	}
	return nil
}

// updateNonce stores the Replay-Nonce header of a response, if present, to be
// consumed by the next signed request.
func (c *Client) updateNonce(resp *http.Response) {
	if resp == nil {
		return
	}
	if nonce := resp.Header.Get(acme.REPLAY_NONCE_HEADER); nonce != "" {
		c.nonce = nonce
		if c.Output.PrintNonceUpdates {
			log.Printf("Updated nonce to %q", nonce)
		}
	}
}
