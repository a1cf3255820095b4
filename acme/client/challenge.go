package client

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/mlake/certflow/acme"
	"github.com/mlake/certflow/acme/resources"
)

// authzPollInterval is the fixed sleep between Wait polls while pending
// authorizations remain. A var so tests can shorten it.
var authzPollInterval = 5 * time.Second

// DescribePendingChallenges computes what a challenge responder must publish
// for every outstanding challenge of the given Order.
//
// For each Authorization that is still pending, a challenge is selected when
// its status is "pending" or "invalid" and its type matches preferredType.
// Wildcard authorizations are the exception: they can only be proven with
// dns-01, so only dns-01 challenges are described for them whatever the
// preference.
//
// dns-01 descriptions carry the TXT record name and the base64url SHA-256
// digest of the key authorization; http-01 descriptions carry the well-known
// URL and the key authorization verbatim. tls-alpn-01 responses are computed
// but never surfaced by this operation: publishing them requires a TLS
// listener, which is out of scope here.
func (c *Client) DescribePendingChallenges(ctx context.Context, order *resources.Order, preferredType string) ([]resources.ChallengeDescription, error) {
	if c.ActiveAccount == nil || c.ActiveAccount.Signer == nil {
		return nil, acme.ErrUnauthenticated
	}

	thumbprint, err := c.ActiveAccount.Thumbprint()
	if err != nil {
		return nil, err
	}

	authzs, err := c.GetAuthorizations(ctx, order)
	if err != nil {
		return nil, err
	}

	var descriptions []resources.ChallengeDescription
	for _, authz := range authzs {
		if authz.Status != acme.STATUS_PENDING {
			continue
		}

		for _, chall := range authz.Challenges {
			if chall.Status != acme.STATUS_PENDING && chall.Status != acme.STATUS_INVALID {
				continue
			}
			if authz.Wildcard {
				// Wildcard identifiers must be proven over DNS.
				if chall.Type != acme.CHALLENGE_TYPE_DNS_01 {
					continue
				}
			} else if chall.Type != preferredType {
				continue
			}

			keyAuth := fmt.Sprintf("%s.%s", chall.Token, thumbprint)

			switch chall.Type {
			case acme.CHALLENGE_TYPE_DNS_01:
				digest := sha256.Sum256([]byte(keyAuth))
				descriptions = append(descriptions, resources.ChallengeDescription{
					Type:     chall.Type,
					Endpoint: acme.DNS_01_PREFIX + authz.Identifier.Value,
					Value:    base64.RawURLEncoding.EncodeToString(digest[:]),
					URL:      chall.URL,
				})
			case acme.CHALLENGE_TYPE_HTTP_01:
				descriptions = append(descriptions, resources.ChallengeDescription{
					Type:     chall.Type,
					Endpoint: "http://" + authz.Identifier.Value + acme.HTTP_01_PREFIX + chall.Token,
					Value:    keyAuth,
					URL:      chall.URL,
				})
			case acme.CHALLENGE_TYPE_TLS_ALPN_01:
				// The response digest is derivable from keyAuth just like
				// dns-01, but a description is never surfaced for it.
				continue
			}
		}
	}

	return descriptions, nil
}

// ValidateChallenge notifies the server that the response for the challenge
// at the given URL is in place by POSTing the empty JSON object to it,
// signaling the server to attempt validation. The server's updated Challenge
// snapshot is returned. The call is fire-and-forget: it does not wait for
// the challenge to reach a terminal state - use Wait for that.
//
// See https://tools.ietf.org/html/rfc8555#section-7.5.1
func (c *Client) ValidateChallenge(ctx context.Context, challengeURL string) (*resources.Challenge, error) {
	resp, err := c.postWithAccount(ctx, challengeURL, []byte("{}"))
	if err != nil {
		return nil, err
	}

	if resp.Response.StatusCode != http.StatusOK {
		return nil, acme.ProtocolError{
			Operation:  "validateChallenge",
			Detail:     "unexpected response status",
			StatusCode: resp.Response.StatusCode,
			Problem:    problemFromBody(resp.RespBody),
		}
	}

	var chall resources.Challenge
	if err := json.Unmarshal(resp.RespBody, &chall); err != nil {
		return nil, acme.ProtocolError{
			Operation: "validateChallenge",
			Detail:    "response was not a valid Challenge: " + err.Error(),
		}
	}
	if chall.URL == "" {
		chall.URL = challengeURL
	}

	log.Printf("Validation of challenge %q started (status %q)\n", chall.URL, chall.Status)
	return &chall, nil
}

// ValidateChallenges computes the pending challenge descriptions for the
// Order (see DescribePendingChallenges) and triggers validation for each,
// collecting the server's updated Challenge snapshots. The caller must have
// published the responses first. It does not poll for completion.
func (c *Client) ValidateChallenges(ctx context.Context, order *resources.Order, preferredType string) ([]resources.Challenge, error) {
	descriptions, err := c.DescribePendingChallenges(ctx, order, preferredType)
	if err != nil {
		return nil, err
	}

	challenges := make([]resources.Challenge, 0, len(descriptions))
	for _, desc := range descriptions {
		chall, err := c.ValidateChallenge(ctx, desc.URL)
		if err != nil {
			return nil, err
		}
		challenges = append(challenges, *chall)
	}
	return challenges, nil
}

// UpdateChallenge refreshes a given Challenge by fetching its URL from the
// ACME server. If this is successful the Challenge is updated in place.
func (c *Client) UpdateChallenge(ctx context.Context, chall *resources.Challenge) error {
	if chall == nil || chall.URL == "" {
		return acme.ProtocolError{
			Operation: "updateChallenge",
			Detail:    "challenge must not be nil and must have a URL",
		}
	}

	url := chall.URL
	resp, err := c.PostAsGetURL(ctx, url)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(resp.RespBody, chall); err != nil {
		return acme.ProtocolError{
			Operation: "updateChallenge",
			Detail:    "response was not a valid Challenge: " + err.Error(),
		}
	}
	if chall.URL == "" {
		chall.URL = url
	}
	return nil
}

// Wait polls the Order's authorizations until none are pending, returning
// every Authorization whose last observed status is not "valid". An empty
// result means the whole authorization set succeeded.
//
// The first poll happens immediately: when nothing is pending Wait returns
// without sleeping at all. While pending authorizations remain it sleeps
// a fixed five seconds between polls. The loop keeps polling past the sleep
// only once the stop time computed from timeout has been passed, so with
// a practical timeout Wait polls once, sleeps once, and returns whatever the
// poll observed. Hitting the timeout with work outstanding is a normal
// return, not an error; only transport/protocol failures and context
// cancellation produce errors.
func (c *Client) Wait(ctx context.Context, order *resources.Order, timeout time.Duration) ([]resources.Authorization, error) {
	stopTime := time.Now().Add(timeout)

	var authzs []resources.Authorization
	for {
		var err error
		authzs, err = c.GetAuthorizations(ctx, order)
		if err != nil {
			return nil, err
		}

		if !anyPending(authzs) {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(authzPollInterval):
		}

		if !stopTime.Before(time.Now()) {
			break
		}
	}

	var notValid []resources.Authorization
	for _, authz := range authzs {
		if authz.Status != acme.STATUS_VALID {
			notValid = append(notValid, authz)
		}
	}
	return notValid, nil
}

func anyPending(authzs []resources.Authorization) bool {
	for _, authz := range authzs {
		if authz.Pending() {
			return true
		}
	}
	return false
}
