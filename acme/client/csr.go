package client

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"

	"github.com/mlake/certflow/acme"
	"github.com/mlake/certflow/acme/keys"
)

// PEMCSR is the PEM encoding of an x509 Certificate Signing Request (CSR).
type PEMCSR string

// B64CSR is the unpadded base64url encoding of an x509 Certificate Signing
// Request's DER bytes, the form ACME finalize requests carry.
type B64CSR string

// CSR produces a CertificateSigningRequest for the provided commonName and
// SAN names. The keyID will be used to look up a client Keys entry to sign
// the CSR; if empty a fresh key is generated and stored under the joined
// names. If no commonName is provided the first of the names is used. CSR
// returns the PEM encoding of the CSR as well as the base64url encoding of
// its DER bytes.
func (c *Client) CSR(commonName string, names []string, keyID string) (B64CSR, PEMCSR, error) {
	if len(names) == 0 {
		return "", "", fmt.Errorf("no names specified")
	}

	if commonName == "" {
		commonName = names[0]
	}

	template := x509.CertificateRequest{
		Subject: pkix.Name{
			CommonName: commonName,
		},
		DNSNames: names,
	}

	var privateKey crypto.Signer
	if keyID != "" {
		if key, found := c.Keys[keyID]; found {
			privateKey = key
		}
		if privateKey == nil {
			return "", "", fmt.Errorf("no existing key for key ID %q", keyID)
		}
	} else {
		// Save a new random key for the names. The certificate key SHOULD NOT
		// be the account key.
		var err error
		privateKey, err = keys.NewSigner()
		if err != nil {
			return "", "", err
		}
		c.Keys[strings.Join(names, ",")] = privateKey
	}

	csrBytes, err := x509.CreateCertificateRequest(rand.Reader, &template, privateKey)
	if err != nil {
		return "", "", err
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type: "CERTIFICATE REQUEST", Bytes: csrBytes,
	})

	return B64CSR(base64.RawURLEncoding.EncodeToString(csrBytes)),
		PEMCSR(pemBytes),
		nil
}

// csrPEMToBase64URL strips the PEM armor (and its internal newlines) from
// a CSR and re-encodes the DER bytes as unpadded base64url. The DER is not
// otherwise transformed.
func csrPEMToBase64URL(csrPEM string) (string, error) {
	block, _ := pem.Decode([]byte(csrPEM))
	if block == nil || block.Type != "CERTIFICATE REQUEST" {
		return "", acme.SerializationError{
			Err: fmt.Errorf("input was not a PEM encoded certificate request"),
		}
	}
	return base64.RawURLEncoding.EncodeToString(block.Bytes), nil
}
