package client

import (
	"context"
	"encoding/json"
	"log"

	"github.com/mlake/certflow/acme"
)

func (c *Client) getDirectory(ctx context.Context) (map[string]interface{}, error) {
	url := c.DirectoryURL.String()

	resp, err := c.GetURL(ctx, url)
	if err != nil {
		return nil, err
	}

	var directory map[string]interface{}
	if err := json.Unmarshal(resp.RespBody, &directory); err != nil {
		return nil, acme.ProtocolError{
			Operation: "directory",
			Detail:    "directory response was not valid JSON: " + err.Error(),
		}
	}

	return directory, nil
}

// Directory fetches the ACME Directory resource from the ACME server and
// returns it deserialized as a map. The directory is cached after the first
// fetch.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.1
func (c *Client) Directory(ctx context.Context) (map[string]interface{}, error) {
	if c.directory == nil {
		if err := c.UpdateDirectory(ctx); err != nil {
			return nil, err
		}
	}
	return c.directory, nil
}

// UpdateDirectory refreshes the Client's cached directory used when
// referencing the endpoints for updating nonces, creating accounts, and
// creating orders.
func (c *Client) UpdateDirectory(ctx context.Context) error {
	newDir, err := c.getDirectory(ctx)
	if err != nil {
		return err
	}

	c.directory = newDir
	log.Printf("Updated directory")
	return nil
}

// GetEndpointURL gets a URL for a specific ACME endpoint by first fetching
// the ACME server's directory and then checking that directory resource for
// a key with the given name. If the key is found its value is returned along
// with a true bool, otherwise an empty string and false.
func (c *Client) GetEndpointURL(ctx context.Context, name string) (string, bool) {
	dir, err := c.Directory(ctx)
	if err != nil {
		return "", false
	}
	rawURL, ok := dir[name]
	if !ok {
		return "", false
	}
	if v, ok := rawURL.(string); ok && v != "" {
		return v, true
	}
	return "", false
}
