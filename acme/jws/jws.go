// Package jws builds the signed request envelopes (RFC 8555 JWS framing)
// that authenticate every ACME request. It implements exactly the one
// algorithm and header shape the protocol requires: ES256 with either an
// embedded JWK or a key ID, a single-use nonce, and the target URL bound
// into the protected header.
package jws

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mlake/certflow/acme"
	"github.com/mlake/certflow/acme/keys"
)

// A KeyBinding identifies the account key within a protected header. It is
// one of two variants: an embedded public key (used only for requests made
// before the server has assigned an account URL, like NewAccount) or
// a server-issued key ID (used for every subsequent authenticated request).
// Exactly one variant is ever present in a header - never both.
type KeyBinding struct {
	embed bool
	pub   crypto.PublicKey
	keyID string
}

// EmbedKey returns a KeyBinding that embeds the given public key as a JWK in
// the protected header.
func EmbedKey(pub crypto.PublicKey) KeyBinding {
	return KeyBinding{embed: true, pub: pub}
}

// KeyID returns a KeyBinding that identifies the account key by its server
// assigned account URL.
func KeyID(id string) KeyBinding {
	return KeyBinding{keyID: id}
}

// validate enforces that the binding carries exactly one variant.
func (b KeyBinding) validate() error {
	if b.embed && b.keyID != "" {
		return fmt.Errorf("key binding: cannot specify both an embedded key and a key ID")
	}
	if b.embed && b.pub == nil {
		return acme.InvalidKeyError{Detail: "embedded key binding has a nil public key"}
	}
	if !b.embed && b.keyID == "" {
		return fmt.Errorf("key binding: you must specify an embedded key or a key ID")
	}
	return nil
}

// Envelope is the three-part signed structure posted as the body of every
// authenticated ACME request. All three fields are unpadded base64url.
//
// See https://tools.ietf.org/html/rfc8555#section-6.2
type Envelope struct {
	Protected string `json:"protected"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// Marshal serializes the Envelope to the JSON body sent over the wire with
// the "application/jose+json" content type.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// protectedHeader is the JWS protected header ACME requires. Field order is
// deterministic (struct order) so two builds of the same request serialize
// identically.
type protectedHeader struct {
	Alg   string    `json:"alg"`
	JWK   *keys.JWK `json:"jwk,omitempty"`
	KID   string    `json:"kid,omitempty"`
	Nonce string    `json:"nonce"`
	URL   string    `json:"url"`
}

// Build wraps the given payload in a signed Envelope targeting url.
//
// The payload must already be serialized JSON. A nil payload produces the
// empty ("") payload used for POST-as-GET informational requests; an empty
// challenge-ready notification is the literal bytes "{}".
//
// The nonce is the single-use anti-replay token for this request; an empty
// nonce is an error, never silently reused. The binding selects the jwk or
// kid header variant and the signer must be the P-256 private key matching
// that binding. Build performs no I/O.
func Build(payload []byte, url, nonce string, binding KeyBinding, signer crypto.Signer) (*Envelope, error) {
	if url == "" {
		return nil, fmt.Errorf("jws: request URL must not be empty")
	}
	if nonce == "" {
		return nil, acme.ErrNoNonce
	}
	if err := binding.validate(); err != nil {
		return nil, err
	}

	privKey, ok := signer.(*ecdsa.PrivateKey)
	if !ok || privKey.Curve != elliptic.P256() {
		return nil, acme.InvalidKeyError{Detail: "signing key must be an ECDSA P-256 private key"}
	}

	header := protectedHeader{
		Alg:   "ES256",
		Nonce: nonce,
		URL:   url,
	}
	if binding.embed {
		jwk, err := keys.EncodeJWK(binding.pub)
		if err != nil {
			return nil, err
		}
		ownJWK, err := keys.EncodeJWK(privKey.Public())
		if err != nil {
			return nil, err
		}
		if jwk != ownJWK {
			return nil, acme.KeyMismatchError{
				Detail: "signing key does not correspond to the embedded public key"}
		}
		header.JWK = &jwk
	} else {
		header.KID = binding.keyID
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, acme.SerializationError{Err: err}
	}

	protectedB64 := base64.RawURLEncoding.EncodeToString(headerJSON)
	payloadB64 := base64.RawURLEncoding.EncodeToString(payload)

	// The signature covers the literal signing input
	// protectedB64 || "." || payloadB64.
	signingInput := protectedB64 + "." + payloadB64
	digest := sha256.Sum256([]byte(signingInput))

	r, s, err := ecdsa.Sign(rand.Reader, privKey, digest[:])
	if err != nil {
		return nil, fmt.Errorf("jws: signing failed: %s", err)
	}

	// ACME requires the raw fixed-width r||s concatenation, not the DER
	// encoding crypto/ecdsa produces via SignASN1.
	var sig [64]byte
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:])

	return &Envelope{
		Protected: protectedB64,
		Payload:   payloadB64,
		Signature: base64.RawURLEncoding.EncodeToString(sig[:]),
	}, nil
}

// MarshalPayload renders a request body to the compact JSON form Build signs
// over, converting marshaling failures into the client's error taxonomy.
func MarshalPayload(v interface{}) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, acme.SerializationError{Err: err}
	}
	return payload, nil
}
