package acme

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated is returned by operations that require a registered
// account when the client has no account binding (no key, or no server
// assigned account URL) to authenticate with.
var ErrUnauthenticated = errors.New("no ACME account binding available")

// ErrNoNonce is returned when a signing operation is attempted without
// a fresh anti-replay nonce. Nonces are single use: a stale or empty nonce
// must never be silently reused.
var ErrNoNonce = errors.New("no replay nonce available")

// InvalidKeyError indicates key material that is malformed, missing, or on
// the wrong curve for the one signature algorithm ACME requires (ES256).
type InvalidKeyError struct {
	Detail string
}

func (e InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid key: %s", e.Detail)
}

// KeyMismatchError indicates that the private key offered for signing does
// not correspond to the public key being bound into the protected header.
type KeyMismatchError struct {
	Detail string
}

func (e KeyMismatchError) Error() string {
	return fmt.Sprintf("key mismatch: %s", e.Detail)
}

// SerializationError indicates a request payload that could not be rendered
// to the canonical JSON form the signature is computed over.
type SerializationError struct {
	Err error
}

func (e SerializationError) Error() string {
	return fmt.Sprintf("serialization failed: %s", e.Err)
}

func (e SerializationError) Unwrap() error {
	return e.Err
}

// TransportError wraps a failure from the HTTP transport collaborator. It is
// an opaque passthrough: the client performs no retries and surfaces the
// underlying error to the caller unchanged.
type TransportError struct {
	Err error
}

func (e TransportError) Error() string {
	return fmt.Sprintf("transport: %s", e.Err)
}

func (e TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError indicates the server returned a well-formed response that is
// semantically invalid for the operation (unexpected status code, missing
// required field or header). When the server supplied an RFC 7807 problem
// document it is attached.
type ProtocolError struct {
	Operation string
	Detail    string
	// The HTTP status code of the offending response, if one was received.
	StatusCode int
	// The problem document from the response body, if one could be parsed.
	Problem error
}

func (e ProtocolError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Operation, e.Detail)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Problem != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Problem)
	}
	return msg
}

func (e ProtocolError) Unwrap() error {
	return e.Problem
}
