package client

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlake/certflow/acme"
	"github.com/mlake/certflow/acme/resources"
)

// serveAuthz registers a handler that always returns the given Authorization
// for its URL path.
func (ta *testACME) serveAuthz(path string, authz resources.Authorization) {
	ta.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		ta.readEnvelope(r)
		ta.respondJSON(w, http.StatusOK, authz)
	})
}

func pendingDNSChallenge(url, token string) resources.Challenge {
	return resources.Challenge{
		Type:   acme.CHALLENGE_TYPE_DNS_01,
		URL:    url,
		Token:  token,
		Status: acme.STATUS_PENDING,
	}
}

func TestDescribePendingChallengesDNS(t *testing.T) {
	ta := newTestACME(t)
	c := newTestClient(t, ta)
	c.ActiveAccount.ID = ta.acctURL

	ta.serveAuthz("/authz/1", resources.Authorization{
		Status:     acme.STATUS_PENDING,
		Identifier: resources.Identifier{Type: "dns", Value: "example.com"},
		Challenges: []resources.Challenge{
			pendingDNSChallenge(ta.url("/chall/1"), "abc123"),
		},
	})
	order := &resources.Order{
		ID:             ta.url("/order/1"),
		Status:         acme.STATUS_PENDING,
		Authorizations: []string{ta.url("/authz/1")},
	}

	descs, err := c.DescribePendingChallenges(context.Background(), order, acme.CHALLENGE_TYPE_DNS_01)
	require.NoError(t, err)
	require.Len(t, descs, 1)

	thumbprint, err := c.ActiveAccount.Thumbprint()
	require.NoError(t, err)
	digest := sha256.Sum256([]byte("abc123." + thumbprint))

	assert.Equal(t, acme.CHALLENGE_TYPE_DNS_01, descs[0].Type)
	assert.Equal(t, "_acme-challenge.example.com", descs[0].Endpoint)
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(digest[:]), descs[0].Value)
	assert.Equal(t, ta.url("/chall/1"), descs[0].URL)
}

func TestDescribePendingChallengesHTTP(t *testing.T) {
	ta := newTestACME(t)
	c := newTestClient(t, ta)
	c.ActiveAccount.ID = ta.acctURL

	ta.serveAuthz("/authz/1", resources.Authorization{
		Status:     acme.STATUS_PENDING,
		Identifier: resources.Identifier{Type: "dns", Value: "example.com"},
		Challenges: []resources.Challenge{
			{
				Type:   acme.CHALLENGE_TYPE_HTTP_01,
				URL:    ta.url("/chall/1"),
				Token:  "abc123",
				Status: acme.STATUS_PENDING,
			},
		},
	})
	order := &resources.Order{
		ID:             ta.url("/order/1"),
		Authorizations: []string{ta.url("/authz/1")},
	}

	descs, err := c.DescribePendingChallenges(context.Background(), order, acme.CHALLENGE_TYPE_HTTP_01)
	require.NoError(t, err)
	require.Len(t, descs, 1)

	thumbprint, err := c.ActiveAccount.Thumbprint()
	require.NoError(t, err)

	assert.Equal(t, "http://example.com/.well-known/acme-challenge/abc123", descs[0].Endpoint)
	// http-01 publishes the key authorization verbatim, not a digest.
	assert.Equal(t, "abc123."+thumbprint, descs[0].Value)
}

func TestDescribePendingChallengesWildcard(t *testing.T) {
	ta := newTestACME(t)
	c := newTestClient(t, ta)
	c.ActiveAccount.ID = ta.acctURL

	// A wildcard authorization offering both challenge types must produce
	// only a DNS description, even when http-01 is preferred.
	ta.serveAuthz("/authz/1", resources.Authorization{
		Status:     acme.STATUS_PENDING,
		Identifier: resources.Identifier{Type: "dns", Value: "example.com"},
		Wildcard:   true,
		Challenges: []resources.Challenge{
			{
				Type:   acme.CHALLENGE_TYPE_HTTP_01,
				URL:    ta.url("/chall/http"),
				Token:  "tok-http",
				Status: acme.STATUS_PENDING,
			},
			pendingDNSChallenge(ta.url("/chall/dns"), "tok-dns"),
		},
	})
	order := &resources.Order{
		ID:             ta.url("/order/1"),
		Authorizations: []string{ta.url("/authz/1")},
	}

	descs, err := c.DescribePendingChallenges(context.Background(), order, acme.CHALLENGE_TYPE_HTTP_01)
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, acme.CHALLENGE_TYPE_DNS_01, descs[0].Type)
	assert.Equal(t, "_acme-challenge.example.com", descs[0].Endpoint)
}

func TestDescribePendingChallengesNeverSurfacesTLSALPN(t *testing.T) {
	ta := newTestACME(t)
	c := newTestClient(t, ta)
	c.ActiveAccount.ID = ta.acctURL

	ta.serveAuthz("/authz/1", resources.Authorization{
		Status:     acme.STATUS_PENDING,
		Identifier: resources.Identifier{Type: "dns", Value: "example.com"},
		Challenges: []resources.Challenge{
			{
				Type:   acme.CHALLENGE_TYPE_TLS_ALPN_01,
				URL:    ta.url("/chall/1"),
				Token:  "abc123",
				Status: acme.STATUS_PENDING,
			},
		},
	})
	order := &resources.Order{
		ID:             ta.url("/order/1"),
		Authorizations: []string{ta.url("/authz/1")},
	}

	descs, err := c.DescribePendingChallenges(context.Background(), order, acme.CHALLENGE_TYPE_TLS_ALPN_01)
	require.NoError(t, err)
	assert.Empty(t, descs)
}

func TestDescribePendingChallengesSkipsSettledAuthorizations(t *testing.T) {
	ta := newTestACME(t)
	c := newTestClient(t, ta)
	c.ActiveAccount.ID = ta.acctURL

	ta.serveAuthz("/authz/1", resources.Authorization{
		Status:     acme.STATUS_VALID,
		Identifier: resources.Identifier{Type: "dns", Value: "a.example.com"},
		Challenges: []resources.Challenge{
			pendingDNSChallenge(ta.url("/chall/1"), "tok-1"),
		},
	})
	// A previously failed challenge ("invalid") on a pending authorization is
	// still describable: retrying it is the caller's decision.
	ta.serveAuthz("/authz/2", resources.Authorization{
		Status:     acme.STATUS_PENDING,
		Identifier: resources.Identifier{Type: "dns", Value: "b.example.com"},
		Challenges: []resources.Challenge{
			{
				Type:   acme.CHALLENGE_TYPE_DNS_01,
				URL:    ta.url("/chall/2"),
				Token:  "tok-2",
				Status: acme.STATUS_INVALID,
			},
		},
	})
	order := &resources.Order{
		ID:             ta.url("/order/1"),
		Authorizations: []string{ta.url("/authz/1"), ta.url("/authz/2")},
	}

	descs, err := c.DescribePendingChallenges(context.Background(), order, acme.CHALLENGE_TYPE_DNS_01)
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, ta.url("/chall/2"), descs[0].URL)
	assert.Equal(t, "_acme-challenge.b.example.com", descs[0].Endpoint)
}

func TestValidateChallenge(t *testing.T) {
	ta := newTestACME(t)
	c := newTestClient(t, ta)
	c.ActiveAccount.ID = ta.acctURL

	requests := 0
	ta.mux.HandleFunc("/chall/1", func(w http.ResponseWriter, r *http.Request) {
		requests++
		_, payload := ta.readEnvelope(r)
		// Validation is triggered with the empty JSON object, not the empty
		// POST-as-GET payload.
		assert.JSONEq(t, "{}", string(payload))

		ta.respondJSON(w, http.StatusOK, resources.Challenge{
			Type:   acme.CHALLENGE_TYPE_DNS_01,
			URL:    ta.url("/chall/1"),
			Token:  "abc123",
			Status: acme.STATUS_PROCESSING,
		})
	})

	chall, err := c.ValidateChallenge(context.Background(), ta.url("/chall/1"))
	require.NoError(t, err)
	assert.Equal(t, acme.STATUS_PROCESSING, chall.Status)
	// Fire-and-forget: exactly one request, no polling.
	assert.Equal(t, 1, requests)
}

func TestValidateChallenges(t *testing.T) {
	ta := newTestACME(t)
	c := newTestClient(t, ta)
	c.ActiveAccount.ID = ta.acctURL

	ta.serveAuthz("/authz/1", resources.Authorization{
		Status:     acme.STATUS_PENDING,
		Identifier: resources.Identifier{Type: "dns", Value: "a.example.com"},
		Challenges: []resources.Challenge{
			pendingDNSChallenge(ta.url("/chall/1"), "tok-1"),
		},
	})
	ta.serveAuthz("/authz/2", resources.Authorization{
		Status:     acme.STATUS_PENDING,
		Identifier: resources.Identifier{Type: "dns", Value: "b.example.com"},
		Challenges: []resources.Challenge{
			pendingDNSChallenge(ta.url("/chall/2"), "tok-2"),
		},
	})
	for _, path := range []string{"/chall/1", "/chall/2"} {
		path := path
		ta.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			ta.readEnvelope(r)
			ta.respondJSON(w, http.StatusOK, resources.Challenge{
				Type:   acme.CHALLENGE_TYPE_DNS_01,
				URL:    ta.url(path),
				Status: acme.STATUS_PROCESSING,
			})
		})
	}
	order := &resources.Order{
		ID:             ta.url("/order/1"),
		Authorizations: []string{ta.url("/authz/1"), ta.url("/authz/2")},
	}

	challs, err := c.ValidateChallenges(context.Background(), order, acme.CHALLENGE_TYPE_DNS_01)
	require.NoError(t, err)
	require.Len(t, challs, 2)
	assert.Equal(t, ta.url("/chall/1"), challs[0].URL)
	assert.Equal(t, ta.url("/chall/2"), challs[1].URL)
}

func TestWaitReturnsImmediatelyWhenNothingPending(t *testing.T) {
	ta := newTestACME(t)
	c := newTestClient(t, ta)
	c.ActiveAccount.ID = ta.acctURL

	ta.serveAuthz("/authz/1", resources.Authorization{
		Status:     acme.STATUS_VALID,
		Identifier: resources.Identifier{Type: "dns", Value: "a.example.com"},
	})
	ta.serveAuthz("/authz/2", resources.Authorization{
		Status:     acme.STATUS_INVALID,
		Identifier: resources.Identifier{Type: "dns", Value: "b.example.com"},
	})
	order := &resources.Order{
		ID:             ta.url("/order/1"),
		Authorizations: []string{ta.url("/authz/1"), ta.url("/authz/2")},
	}

	start := time.Now()
	remaining, err := c.Wait(context.Background(), order, time.Minute)
	require.NoError(t, err)
	// The first poll found no pending authorizations, so Wait exits without
	// ever sleeping.
	assert.Less(t, time.Since(start), authzPollInterval)

	// Everything not valid is reported, pending or not.
	require.Len(t, remaining, 1)
	assert.Equal(t, acme.STATUS_INVALID, remaining[0].Status)
	assert.Equal(t, "b.example.com", remaining[0].Identifier.Value)
}

func TestWaitTimesOutWithPendingWork(t *testing.T) {
	oldInterval := authzPollInterval
	authzPollInterval = 10 * time.Millisecond
	defer func() { authzPollInterval = oldInterval }()

	ta := newTestACME(t)
	c := newTestClient(t, ta)
	c.ActiveAccount.ID = ta.acctURL

	ta.serveAuthz("/authz/1", resources.Authorization{
		Status:     acme.STATUS_PENDING,
		Identifier: resources.Identifier{Type: "dns", Value: "a.example.com"},
	})
	order := &resources.Order{
		ID:             ta.url("/order/1"),
		Authorizations: []string{ta.url("/authz/1")},
	}

	// Timing out with work outstanding is a normal return: the pending
	// authorization comes back in the remainder, not as an error.
	remaining, err := c.Wait(context.Background(), order, time.Minute)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, acme.STATUS_PENDING, remaining[0].Status)
}

func TestWaitContextCancellation(t *testing.T) {
	ta := newTestACME(t)
	c := newTestClient(t, ta)
	c.ActiveAccount.ID = ta.acctURL

	ta.serveAuthz("/authz/1", resources.Authorization{
		Status:     acme.STATUS_PENDING,
		Identifier: resources.Identifier{Type: "dns", Value: "a.example.com"},
	})
	order := &resources.Order{
		ID:             ta.url("/order/1"),
		Authorizations: []string{ta.url("/authz/1")},
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := c.Wait(ctx, order, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	// The cancellation aborted the five second sleep promptly.
	assert.Less(t, time.Since(start), time.Second)
}

// UpdateChallenge keeps the challenge URL when the server omits it from the
// response body.
func TestUpdateChallenge(t *testing.T) {
	ta := newTestACME(t)
	c := newTestClient(t, ta)
	c.ActiveAccount.ID = ta.acctURL

	ta.mux.HandleFunc("/chall/1", func(w http.ResponseWriter, r *http.Request) {
		_, payload := ta.readEnvelope(r)
		assert.Empty(t, payload)
		ta.respondJSON(w, http.StatusOK, map[string]string{
			"type":   acme.CHALLENGE_TYPE_DNS_01,
			"status": acme.STATUS_VALID,
		})
	})

	chall := &resources.Challenge{URL: ta.url("/chall/1"), Status: acme.STATUS_PROCESSING}
	require.NoError(t, c.UpdateChallenge(context.Background(), chall))
	assert.Equal(t, acme.STATUS_VALID, chall.Status)
	assert.Equal(t, ta.url("/chall/1"), chall.URL)
}
