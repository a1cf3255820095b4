package resources

// The Identifier resource represents a subject identifier that can be included
// in a certificate.
//
// See:
// https://tools.ietf.org/html/rfc8555#section-7.5
// https://tools.ietf.org/html/rfc8555#section-9.7.7
//
// In practice most ACME servers only support "dns" type identifiers where the
// value specifies a fully qualified domain name.
//
// A DNS type identifier in a NewOrder request may carry a wildcard prefix
// ("*."). A DNS type identifier in an Authorization resource never does:
// the Authorization's Wildcard field is set to true and the identifier value
// is represented without the "*." prefix.
type Identifier struct {
	// The Type of the Identifier value.
	Type string `json:"type"`
	// The Identifier value.
	Value string `json:"value"`
}

// The Order resource represents a collection of identifiers that an account
// wishes to create a Certificate for.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.3
//
// To understand the Status changes specified by ACME for the Order resource
// see https://tools.ietf.org/html/rfc8555#section-7.1.6
type Order struct {
	// The server-assigned ID (a URL) identifying the Order. Populated from the
	// Location header of the NewOrder response, not from the response body.
	ID string `json:"-"`
	// The Status of the Order, one of "pending", "ready", "processing",
	// "valid" or "invalid". Only ever updated by re-fetching the Order from
	// the server, never transitioned locally.
	Status string `json:"status"`
	// An RFC 3339 date after which the server considers the Order expired.
	Expires string `json:"expires,omitempty"`
	// The Identifiers the Order wishes to finalize a Certificate for once the
	// Order is ready.
	Identifiers []Identifier `json:"identifiers"`
	// Optional requested notBefore/notAfter bounds for the certificate.
	NotBefore string `json:"notBefore,omitempty"`
	NotAfter  string `json:"notAfter,omitempty"`
	// A list of URLs for Authorization resources the server specifies for the
	// Order Identifiers. One Authorization exists per Identifier.
	Authorizations []string `json:"authorizations"`
	// A URL used to Finalize the Order with a CSR once the Order has a status
	// of "ready".
	Finalize string `json:"finalize"`
	// A URL used to fetch the Certificate issued by the server for the Order
	// after being Finalized. Present and non-empty when the Order has
	// a status of "valid".
	Certificate string `json:"certificate,omitempty"`
	// The problem document associated with an invalid Order, if any.
	Error *Problem `json:"error,omitempty"`
}

// String returns the Order's ID URL.
func (o Order) String() string {
	return o.ID
}
