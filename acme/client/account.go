package client

import (
	"context"
	"log"
	"net/http"

	"github.com/mlake/certflow/acme"
	"github.com/mlake/certflow/acme/jws"
	"github.com/mlake/certflow/acme/resources"
)

// newAccountRequest is the NewAccount payload. Registration always agrees to
// the server's terms of service, which is one of MANY reasons certflow is for
// development and testing, not production issuance.
type newAccountRequest struct {
	Contact              []string `json:"contact,omitempty"`
	TermsOfServiceAgreed bool     `json:"termsOfServiceAgreed,omitempty"`
	OnlyReturnExisting   bool     `json:"onlyReturnExisting,omitempty"`
}

// CreateAccount registers the given Account with the ACME server. The
// Account's ID is populated from the Location header of the server's
// response if the operation is successful, otherwise an error is returned.
//
// This is the one request signed with an embedded JWK rather than a key ID:
// the server has not assigned an account URL yet.
//
// See https://tools.ietf.org/html/rfc8555#section-7.3
func (c *Client) CreateAccount(ctx context.Context, acct *resources.Account) error {
	if acct.ID != "" {
		return acme.ProtocolError{
			Operation: "createAccount",
			Detail:    "account already exists under ID " + acct.ID,
		}
	}
	return c.newAccount(ctx, acct, false)
}

// LookupAccount resolves the account URL for a previously registered key by
// asking the newAccount endpoint for the existing account only. The
// Account's ID is populated on success.
//
// See https://tools.ietf.org/html/rfc8555#section-7.3.1
func (c *Client) LookupAccount(ctx context.Context, acct *resources.Account) error {
	return c.newAccount(ctx, acct, true)
}

func (c *Client) newAccount(ctx context.Context, acct *resources.Account, onlyReturnExisting bool) error {
	if acct == nil || acct.Signer == nil {
		return acme.ErrUnauthenticated
	}

	payload, err := jws.MarshalPayload(newAccountRequest{
		Contact:              acct.Contact,
		TermsOfServiceAgreed: !onlyReturnExisting,
		OnlyReturnExisting:   onlyReturnExisting,
	})
	if err != nil {
		return err
	}

	newAcctURL, ok := c.GetEndpointURL(ctx, acme.NEW_ACCOUNT_ENDPOINT)
	if !ok {
		return acme.ProtocolError{
			Operation: "newAccount",
			Detail:    "ACME server directory is missing a " + acme.NEW_ACCOUNT_ENDPOINT + " endpoint",
		}
	}

	resp, err := c.postSignedAs(ctx, newAcctURL, payload,
		jws.EmbedKey(acct.Signer.Public()), acct.Signer)
	if err != nil {
		return err
	}

	respOb := resp.Response
	if respOb.StatusCode != http.StatusCreated && respOb.StatusCode != http.StatusOK {
		return acme.ProtocolError{
			Operation:  "newAccount",
			Detail:     "unexpected response status",
			StatusCode: respOb.StatusCode,
			Problem:    problemFromBody(resp.RespBody),
		}
	}

	locHeader := respOb.Header.Get("Location")
	if locHeader == "" {
		return acme.ProtocolError{
			Operation: "newAccount",
			Detail:    "response had no Location header",
		}
	}

	// The Location header is the account URL, used as the key ID for every
	// subsequent signed request.
	acct.ID = locHeader
	log.Printf("Account has ID %q\n", acct.ID)
	return nil
}

// ensureAccount makes sure the active account has a server assigned URL to
// use as the envelope key ID, performing an implicit lookup when the URL is
// not yet cached. It fails with ErrUnauthenticated when no account key is
// available at all.
func (c *Client) ensureAccount(ctx context.Context) error {
	if c.ActiveAccount == nil || c.ActiveAccount.Signer == nil {
		return acme.ErrUnauthenticated
	}
	if c.ActiveAccount.ID != "" {
		return nil
	}
	log.Printf("No account URL cached, looking up account\n")
	return c.LookupAccount(ctx, c.ActiveAccount)
}
