package client

import (
	"context"
	"crypto"
	"log"

	"github.com/mlake/certflow/acme"
	"github.com/mlake/certflow/acme/jws"
	"github.com/mlake/certflow/net"
)

// postSigned wraps the given serialized payload in a signed envelope for url
// and POSTs it. Exactly one nonce is consumed per call: the one handed out
// by Nonce. A nil binding key ID means the active account's key ID is used.
//
// A nil payload produces the empty ("") envelope payload used for
// POST-as-GET requests.
func (c *Client) postSigned(ctx context.Context, url string, payload []byte, binding jws.KeyBinding) (*net.NetResponse, error) {
	if c.ActiveAccount == nil || c.ActiveAccount.Signer == nil {
		return nil, acme.ErrUnauthenticated
	}
	return c.postSignedAs(ctx, url, payload, binding, c.ActiveAccount.Signer)
}

// postSignedAs is postSigned with an explicit signing key, for requests made
// before an account exists (NewAccount signs with an embedded JWK).
func (c *Client) postSignedAs(ctx context.Context, url string, payload []byte, binding jws.KeyBinding, signer crypto.Signer) (*net.NetResponse, error) {
	nonce, err := c.Nonce(ctx)
	if err != nil {
		return nil, err
	}

	envelope, err := jws.Build(payload, url, nonce, binding, signer)
	if err != nil {
		return nil, err
	}

	body, err := envelope.Marshal()
	if err != nil {
		return nil, acme.SerializationError{Err: err}
	}

	if c.Output.PrintEnvelopes {
		log.Printf("Envelope:\n%s\n", body)
	}

	return c.PostURL(ctx, url, body)
}

// postWithAccount signs payload with the account's key-ID binding, resolving
// the account URL first if it has not been cached yet.
func (c *Client) postWithAccount(ctx context.Context, url string, payload []byte) (*net.NetResponse, error) {
	if err := c.ensureAccount(ctx); err != nil {
		return nil, err
	}
	return c.postSigned(ctx, url, payload, jws.KeyID(c.ActiveAccount.ID))
}

// PostAsGetURL fetches a resource with an authenticated POST-as-GET request:
// a signed envelope with the empty payload.
//
// See https://tools.ietf.org/html/rfc8555#section-6.3
func (c *Client) PostAsGetURL(ctx context.Context, url string) (*net.NetResponse, error) {
	return c.postWithAccount(ctx, url, nil)
}
