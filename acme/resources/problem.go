package resources

import "fmt"

// Problem is a struct representing an RFC 7807 problem document from the
// server. See https://tools.ietf.org/html/rfc8555#section-6.7
type Problem struct {
	Type   string `json:"type,omitempty"`
	Detail string `json:"detail,omitempty"`
	Status int    `json:"status,omitempty"`
}

// Error makes a Problem usable as a Go error so protocol failures can carry
// the server's own description of what went wrong.
func (p Problem) Error() string {
	return fmt.Sprintf("%s: %s", p.Type, p.Detail)
}
