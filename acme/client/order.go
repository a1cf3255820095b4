package client

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/mlake/certflow/acme"
	"github.com/mlake/certflow/acme/jws"
	"github.com/mlake/certflow/acme/resources"
)

// newOrderRequest is the NewOrder payload.
type newOrderRequest struct {
	Identifiers []resources.Identifier `json:"identifiers"`
	NotBefore   string                 `json:"notBefore,omitempty"`
	NotAfter    string                 `json:"notAfter,omitempty"`
}

// finalizeRequest is the Finalize payload: the base64url encoding of the
// CSR's DER bytes.
type finalizeRequest struct {
	CSR string `json:"csr"`
}

// CreateOrder asks the ACME server to create a new Order for the given
// identifiers, optionally bounded by notBefore/notAfter (RFC 3339 strings,
// empty to omit). The returned Order's ID is populated from the Location
// header of the server's response.
//
// The request is signed with the account's key ID; if the account URL is not
// yet cached an implicit lookup resolves it first. Without an account key the
// operation fails with ErrUnauthenticated.
//
// See https://tools.ietf.org/html/rfc8555#section-7.4
func (c *Client) CreateOrder(ctx context.Context, identifiers []resources.Identifier, notBefore, notAfter string) (*resources.Order, error) {
	payload, err := jws.MarshalPayload(newOrderRequest{
		Identifiers: identifiers,
		NotBefore:   notBefore,
		NotAfter:    notAfter,
	})
	if err != nil {
		return nil, err
	}

	newOrderURL, ok := c.GetEndpointURL(ctx, acme.NEW_ORDER_ENDPOINT)
	if !ok {
		return nil, acme.ProtocolError{
			Operation: "createOrder",
			Detail:    "ACME server directory is missing a " + acme.NEW_ORDER_ENDPOINT + " endpoint",
		}
	}

	resp, err := c.postWithAccount(ctx, newOrderURL, payload)
	if err != nil {
		return nil, err
	}

	respOb := resp.Response
	if respOb.StatusCode != http.StatusCreated {
		return nil, acme.ProtocolError{
			Operation:  "createOrder",
			Detail:     "unexpected response status",
			StatusCode: respOb.StatusCode,
			Problem:    problemFromBody(resp.RespBody),
		}
	}

	locHeader := respOb.Header.Get("Location")
	if locHeader == "" {
		return nil, acme.ProtocolError{
			Operation: "createOrder",
			Detail:    "response had no Location header",
		}
	}

	var order resources.Order
	if err := json.Unmarshal(resp.RespBody, &order); err != nil {
		return nil, acme.ProtocolError{
			Operation: "createOrder",
			Detail:    "response was not a valid Order: " + err.Error(),
		}
	}

	order.ID = locHeader
	log.Printf("Created new order with ID %q\n", order.ID)
	return &order, nil
}

// UpdateOrder refreshes a given Order by fetching its ID URL from the ACME
// server with a POST-as-GET request. If this is successful the Order is
// mutated in place. Re-fetching is the only way an Order's Status ever
// changes client-side.
func (c *Client) UpdateOrder(ctx context.Context, order *resources.Order) error {
	if order == nil || order.ID == "" {
		return acme.ProtocolError{
			Operation: "updateOrder",
			Detail:    "order must not be nil and must have an ID",
		}
	}

	resp, err := c.PostAsGetURL(ctx, order.ID)
	if err != nil {
		return err
	}

	if resp.Response.StatusCode != http.StatusOK {
		return acme.ProtocolError{
			Operation:  "updateOrder",
			Detail:     "unexpected response status",
			StatusCode: resp.Response.StatusCode,
			Problem:    problemFromBody(resp.RespBody),
		}
	}

	if err := json.Unmarshal(resp.RespBody, order); err != nil {
		return acme.ProtocolError{
			Operation: "updateOrder",
			Detail:    "response was not a valid Order: " + err.Error(),
		}
	}
	return nil
}

// FinalizeOrder submits the given PEM encoded CSR to the Order's finalize
// URL, asking the CA to issue a certificate for a ready Order. The CSR's PEM
// armor and newlines are stripped and its raw DER bytes are base64url
// encoded for transmission. The updated Order is returned (typically with
// status "processing" or "valid").
//
// See https://tools.ietf.org/html/rfc8555#section-7.4
func (c *Client) FinalizeOrder(ctx context.Context, order *resources.Order, csrPEM string) (*resources.Order, error) {
	if order == nil || order.Finalize == "" {
		return nil, acme.ProtocolError{
			Operation: "finalizeOrder",
			Detail:    "order must not be nil and must have a finalize URL",
		}
	}

	csrB64, err := csrPEMToBase64URL(csrPEM)
	if err != nil {
		return nil, err
	}

	payload, err := jws.MarshalPayload(finalizeRequest{CSR: csrB64})
	if err != nil {
		return nil, err
	}

	resp, err := c.postWithAccount(ctx, order.Finalize, payload)
	if err != nil {
		return nil, err
	}

	respOb := resp.Response
	if respOb.StatusCode != http.StatusOK {
		return nil, acme.ProtocolError{
			Operation:  "finalizeOrder",
			Detail:     "unexpected response status",
			StatusCode: respOb.StatusCode,
			Problem:    problemFromBody(resp.RespBody),
		}
	}

	updated := &resources.Order{ID: order.ID}
	if err := json.Unmarshal(resp.RespBody, updated); err != nil {
		return nil, acme.ProtocolError{
			Operation: "finalizeOrder",
			Detail:    "response was not a valid Order: " + err.Error(),
		}
	}

	log.Printf("Finalized order %q (status %q)\n", order.ID, updated.Status)
	return updated, nil
}

// GetAuthorizations dereferences each of the Order's authorization URLs with
// an authenticated POST-as-GET request and returns the parsed Authorizations
// in the same order as order.Authorizations. Authorizations are never cached
// beyond the call that produced them.
//
// See https://tools.ietf.org/html/rfc8555#section-7.5
func (c *Client) GetAuthorizations(ctx context.Context, order *resources.Order) ([]resources.Authorization, error) {
	if order == nil {
		return nil, acme.ProtocolError{
			Operation: "getAuthorizations",
			Detail:    "order must not be nil",
		}
	}

	authzs := make([]resources.Authorization, 0, len(order.Authorizations))
	for _, authzURL := range order.Authorizations {
		authz := resources.Authorization{ID: authzURL}
		if err := c.UpdateAuthorization(ctx, &authz); err != nil {
			return nil, err
		}
		authzs = append(authzs, authz)
	}
	return authzs, nil
}

// UpdateAuthorization refreshes a given Authorization by fetching its ID URL
// from the ACME server. If this is successful the Authorization is updated
// in place.
func (c *Client) UpdateAuthorization(ctx context.Context, authz *resources.Authorization) error {
	if authz == nil || authz.ID == "" {
		return acme.ProtocolError{
			Operation: "updateAuthorization",
			Detail:    "authorization must not be nil and must have an ID",
		}
	}

	resp, err := c.PostAsGetURL(ctx, authz.ID)
	if err != nil {
		return err
	}

	if resp.Response.StatusCode != http.StatusOK {
		return acme.ProtocolError{
			Operation:  "updateAuthorization",
			Detail:     "unexpected response status",
			StatusCode: resp.Response.StatusCode,
			Problem:    problemFromBody(resp.RespBody),
		}
	}

	if err := json.Unmarshal(resp.RespBody, authz); err != nil {
		return acme.ProtocolError{
			Operation: "updateAuthorization",
			Detail:    "response was not a valid Authorization: " + err.Error(),
		}
	}
	return nil
}

// FetchCertificate downloads the PEM certificate chain for a valid Order.
//
// See https://tools.ietf.org/html/rfc8555#section-7.4.2
func (c *Client) FetchCertificate(ctx context.Context, order *resources.Order) (string, error) {
	if order == nil || order.Certificate == "" {
		return "", acme.ProtocolError{
			Operation: "fetchCertificate",
			Detail:    "order has no certificate URL (is it valid yet?)",
		}
	}

	resp, err := c.PostAsGetURL(ctx, order.Certificate)
	if err != nil {
		return "", err
	}

	if resp.Response.StatusCode != http.StatusOK {
		return "", acme.ProtocolError{
			Operation:  "fetchCertificate",
			Detail:     "unexpected response status",
			StatusCode: resp.Response.StatusCode,
			Problem:    problemFromBody(resp.RespBody),
		}
	}
	return string(resp.RespBody), nil
}
