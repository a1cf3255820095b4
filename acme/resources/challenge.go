package resources

// The ACME Challenge resource represents an action that the client must take
// to authorize a given account for a specific identifier in order to issue
// a certificate containing that identifier.
//
// For information about the Challenge resource see
// https://tools.ietf.org/html/rfc8555#section-7.1.5
//
// To understand the Challenge types specified by RFC 8555 see
// https://tools.ietf.org/html/rfc8555#section-8
//
// To understand the Challenge Status changes specified by RFC 8555 see
// https://tools.ietf.org/html/rfc8555#section-7.1.6
type Challenge struct {
	// The Type of the challenge ("http-01", "dns-01", "tls-alpn-01").
	Type string `json:"type"`
	// The URL/ID of the challenge (provided by the server in the associated
	// Authorization).
	URL string `json:"url"`
	// The Token used for constructing the challenge response for this
	// challenge.
	Token string `json:"token"`
	// The Status of the challenge, one of "pending", "processing", "valid" or
	// "invalid".
	Status string `json:"status"`
	// An RFC 3339 date recording when the server validated the challenge,
	// present once the challenge is "valid".
	Validated string `json:"validated,omitempty"`
	// The Error associated with an invalid challenge.
	Error *Problem `json:"error,omitempty"`
}

// String returns the URL of the Challenge.
func (c Challenge) String() string {
	return c.URL
}

// A ChallengeDescription is the derived (never transmitted) description of
// what a challenge responder must publish before the associated Challenge is
// validated, plus the Challenge URL to notify once it has been published.
//
// For a dns-01 challenge the Endpoint is the TXT record name
// ("_acme-challenge.<identifier>") and the Value is the base64url encoded
// SHA-256 digest of the key authorization. For an http-01 challenge the
// Endpoint is the full well-known URL and the Value is the key authorization
// published verbatim.
type ChallengeDescription struct {
	// The Type of the underlying challenge ("dns-01" or "http-01").
	Type string
	// Where the response must be published: a TXT record name or an HTTP URL.
	Endpoint string
	// The exact bytes to publish at the Endpoint.
	Value string
	// The Challenge URL to POST to once the Value is in place.
	URL string
}
