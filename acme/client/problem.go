package client

import (
	"encoding/json"

	"github.com/mlake/certflow/acme/resources"
)

// problemFromBody extracts an RFC 7807 problem document from an error
// response body, returning nil when the body does not hold one.
func problemFromBody(body []byte) error {
	if len(body) == 0 {
		return nil
	}
	var prob resources.Problem
	if err := json.Unmarshal(body, &prob); err != nil {
		return nil
	}
	if prob.Type == "" && prob.Detail == "" {
		return nil
	}
	return prob
}
