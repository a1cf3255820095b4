package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlake/certflow/acme"
)

func testKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func TestEncodeJWK(t *testing.T) {
	key := testKey(t)

	jwk, err := EncodeJWK(key.Public())
	require.NoError(t, err)
	assert.Equal(t, "EC", jwk.Kty)
	assert.Equal(t, "P-256", jwk.Crv)
	assert.NotEmpty(t, jwk.X)
	assert.NotEmpty(t, jwk.Y)

	// Two encodings of the same key must match byte for byte.
	again, err := EncodeJWK(key.Public())
	require.NoError(t, err)
	assert.Equal(t, jwk, again)

	// Serialized field order is fixed.
	jwkJSON, err := json.Marshal(jwk)
	require.NoError(t, err)
	expected := fmt.Sprintf(`{"kty":"EC","crv":"P-256","x":%q,"y":%q}`, jwk.X, jwk.Y)
	assert.Equal(t, expected, string(jwkJSON))
}

func TestEncodeJWKRejectsBadKeys(t *testing.T) {
	_, err := EncodeJWK(nil)
	assert.IsType(t, acme.InvalidKeyError{}, err)

	p384, genErr := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, genErr)
	_, err = EncodeJWK(p384.Public())
	assert.IsType(t, acme.InvalidKeyError{}, err)
}

func TestThumbprintDeterministic(t *testing.T) {
	key := testKey(t)

	thumbprint, err := Thumbprint(key.Public())
	require.NoError(t, err)

	// Lowercase hex of a SHA-256 digest.
	digest, err := hex.DecodeString(thumbprint)
	require.NoError(t, err)
	assert.Len(t, digest, sha256.Size)

	// Repeated calls must agree.
	again, err := Thumbprint(key.Public())
	require.NoError(t, err)
	assert.Equal(t, thumbprint, again)

	// A key reconstructed from the same bytes must produce the same
	// thumbprint, as it would across process restarts.
	keyBytes, err := MarshalSigner(key)
	require.NoError(t, err)
	restored, err := UnmarshalSigner(keyBytes)
	require.NoError(t, err)
	restoredThumb, err := Thumbprint(restored.Public())
	require.NoError(t, err)
	assert.Equal(t, thumbprint, restoredThumb)
}

func TestThumbprintSortedKeySerialization(t *testing.T) {
	key := testKey(t)

	jwk, err := EncodeJWK(key.Public())
	require.NoError(t, err)

	// The digest is computed over the JWK with keys sorted lexicographically,
	// not in the envelope field order.
	canonical := fmt.Sprintf(`{"crv":%q,"kty":%q,"x":%q,"y":%q}`,
		jwk.Crv, jwk.Kty, jwk.X, jwk.Y)
	expected := sha256.Sum256([]byte(canonical))

	thumbprint, err := Thumbprint(key.Public())
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(expected[:]), thumbprint)
}

func TestKeyAuth(t *testing.T) {
	key := testKey(t)

	thumbprint, err := Thumbprint(key.Public())
	require.NoError(t, err)

	keyAuth, err := KeyAuth(key, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123."+thumbprint, keyAuth)
}

func TestSignerRoundTrips(t *testing.T) {
	signer, err := NewSigner()
	require.NoError(t, err)

	keyBytes, err := MarshalSigner(signer)
	require.NoError(t, err)
	restored, err := UnmarshalSigner(keyBytes)
	require.NoError(t, err)
	assert.Equal(t, signer, restored)

	pemStr, err := SignerToPEM(signer)
	require.NoError(t, err)
	assert.Contains(t, pemStr, "EC PRIVATE KEY")
}
