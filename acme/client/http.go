package client

import (
	"context"
	"log"
	"net/http"

	"github.com/mlake/certflow/acme"
	"github.com/mlake/certflow/net"
)

func (c *Client) handleRequest(req *http.Request) (*net.NetResponse, error) {
	resp, err := c.net.Do(req)
	if err != nil {
		return nil, acme.TransportError{Err: err}
	}
	if c.Output.PrintRequests {
		log.Printf("Request:\n%s\n", resp.ReqDump)
	}
	if c.Output.PrintResponses {
		log.Printf("Response:\n%s\n", resp.RespDump)
	}
	// Every response may carry the nonce for the next signed request.
	c.updateNonce(resp.Response)
	return resp, nil
}

// GetURL issues an unauthenticated GET to the given URL. Only the directory
// is fetched this way; resource reads use PostAsGetURL.
func (c *Client) GetURL(ctx context.Context, url string) (*net.NetResponse, error) {
	req, err := c.net.GetRequest(ctx, url)
	if err != nil {
		return nil, err
	}
	return c.handleRequest(req)
}

// PostURL POSTs the given signed body to the given URL.
func (c *Client) PostURL(ctx context.Context, url string, body []byte) (*net.NetResponse, error) {
	req, err := c.net.PostRequest(ctx, url, body)
	if err != nil {
		return nil, err
	}
	return c.handleRequest(req)
}
