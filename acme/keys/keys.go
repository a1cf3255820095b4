// Package keys offers utility functions for working with the P-256 account
// keys ACME requests are signed with: canonical JWK encoding, thumbprints,
// key authorizations and PEM serialization.
package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"

	"github.com/mlake/certflow/acme"
)

// JWK is the canonical JSON Web Key representation of a P-256 public key.
// The field order is fixed: two encodings of the same key must match byte for
// byte because every signature and thumbprint depends on it.
//
// See https://tools.ietf.org/html/rfc7517
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// EncodeJWK encodes a P-256 public key as a canonical JWK. The coordinates
// are the unsigned fixed-length (32 byte) big-endian values, base64url
// encoded without padding. Keys on any other curve are rejected.
func EncodeJWK(pub crypto.PublicKey) (JWK, error) {
	ecPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return JWK{}, acme.InvalidKeyError{Detail: fmt.Sprintf("unsupported key type %T", pub)}
	}
	if ecPub.Curve != elliptic.P256() {
		return JWK{}, acme.InvalidKeyError{Detail: "key is not on the P-256 curve"}
	}
	if ecPub.X == nil || ecPub.Y == nil {
		return JWK{}, acme.InvalidKeyError{Detail: "key has no coordinates"}
	}

	var xBuf, yBuf [32]byte
	ecPub.X.FillBytes(xBuf[:])
	ecPub.Y.FillBytes(yBuf[:])

	return JWK{
		Kty: "EC",
		Crv: "P-256",
		X:   base64.RawURLEncoding.EncodeToString(xBuf[:]),
		Y:   base64.RawURLEncoding.EncodeToString(yBuf[:]),
	}, nil
}

// Thumbprint computes the stable digest of a P-256 public key: the canonical
// JWK serialized with its object keys sorted lexicographically, hashed with
// SHA-256, hex encoded. The sorted-key serialization is mandated - any other
// ordering produces a different, incorrect digest.
func Thumbprint(pub crypto.PublicKey) (string, error) {
	jwk, err := EncodeJWK(pub)
	if err != nil {
		return "", err
	}

	canonical := fmt.Sprintf(`{"crv":%q,"kty":%q,"x":%q,"y":%q}`,
		jwk.Crv, jwk.Kty, jwk.X, jwk.Y)
	digest := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(digest[:]), nil
}

// KeyAuth constructs the key authorization for a challenge token: the shared
// secret a challenge responder publishes to prove control of the account key.
//
// See https://tools.ietf.org/html/rfc8555#section-8.1
func KeyAuth(signer crypto.Signer, token string) (string, error) {
	thumbprint, err := Thumbprint(signer.Public())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.%s", token, thumbprint), nil
}

// NewSigner generates a fresh P-256 private key suitable for use as an ACME
// account key or a certificate key.
func NewSigner() (crypto.Signer, error) {
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}

// MarshalSigner serializes a P-256 private key to DER for persistence.
func MarshalSigner(signer crypto.Signer) ([]byte, error) {
	k, ok := signer.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("signer was unknown type: %T", signer)
	}
	return x509.MarshalECPrivateKey(k)
}

// UnmarshalSigner deserializes a private key previously serialized with
// MarshalSigner.
func UnmarshalSigner(keyBytes []byte) (crypto.Signer, error) {
	return x509.ParseECPrivateKey(keyBytes)
}

// SignerToPEM returns the PEM encoding of a P-256 private key.
func SignerToPEM(signer crypto.Signer) (string, error) {
	k, ok := signer.(*ecdsa.PrivateKey)
	if !ok {
		return "", fmt.Errorf("unknown key type: %T", signer)
	}
	keyBytes, err := x509.MarshalECPrivateKey(k)
	if err != nil {
		return "", err
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "EC PRIVATE KEY",
		Bytes: keyBytes,
	})
	return string(pemBytes), nil
}
