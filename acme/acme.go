// Package acme provides ACME protocol constants and the error taxonomy shared
// by the certflow packages. See RFC 8555.
package acme

const (
	// Directory constants
	// See https://tools.ietf.org/html/rfc8555#section-9.7.5

	// The ACME directory key for the newNonce endpoint.
	NEW_NONCE_ENDPOINT = "newNonce"
	// The ACME directory key for the newAccount endpoint.
	NEW_ACCOUNT_ENDPOINT = "newAccount"
	// The ACME directory key for the newOrder endpoint.
	NEW_ORDER_ENDPOINT = "newOrder"

	// The HTTP response header used by ACME to communicate a fresh nonce. See
	// https://tools.ietf.org/html/rfc8555#section-9.3
	REPLAY_NONCE_HEADER = "Replay-Nonce"
)

const (
	// Challenge type constants.
	// See https://tools.ietf.org/html/rfc8555#section-8
	CHALLENGE_TYPE_DNS_01      = "dns-01"
	CHALLENGE_TYPE_HTTP_01     = "http-01"
	CHALLENGE_TYPE_TLS_ALPN_01 = "tls-alpn-01"

	// The well-known URL path prefix ACME servers fetch http-01 challenge
	// responses from. See https://tools.ietf.org/html/rfc8555#section-8.3
	HTTP_01_PREFIX = "/.well-known/acme-challenge/"

	// The DNS label prepended to an identifier when constructing the TXT
	// record name for a dns-01 challenge response.
	// See https://tools.ietf.org/html/rfc8555#section-8.4
	DNS_01_PREFIX = "_acme-challenge."
)

const (
	// Status values shared by Orders, Authorizations and Challenges. See
	// https://tools.ietf.org/html/rfc8555#section-7.1.6
	STATUS_PENDING     = "pending"
	STATUS_READY       = "ready"
	STATUS_PROCESSING  = "processing"
	STATUS_VALID       = "valid"
	STATUS_INVALID     = "invalid"
	STATUS_DEACTIVATED = "deactivated"
	STATUS_EXPIRED     = "expired"
	STATUS_REVOKED     = "revoked"
)
