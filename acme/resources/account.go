// Package resources provides types for representing and interacting with ACME
// protocol resources.
package resources

import (
	"crypto"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/mlake/certflow/acme/keys"
)

// Account holds information related to a single ACME Account resource. If the
// account has an empty ID it has not yet been created server-side with the
// ACME server using the client.CreateAccount function.
//
// The ID field holds the server assigned Account URL that is assigned at the
// time of account creation and used as the JWS Key ID for authenticating ACME
// requests with the Account's registered keypair.
//
// The Contact field is either nil or a slice of one or more "mailto:" contact
// addresses.
//
// The Signer field holds the account's P-256 private key. The public
// component is computed from it automatically.
type Account struct {
	// The server assigned Account URL. This is used for the JWS Key ID when
	// authenticating ACME requests using the Account's registered keypair.
	ID string
	// If not nil, a slice of one or more "mailto:" Contact addresses.
	Contact []string
	// The private key used for the ACME account's keypair.
	Signer crypto.Signer

	// The account key thumbprint never changes for a fixed keypair, so it is
	// computed once and cached for the lifetime of the Account.
	thumbOnce sync.Once
	thumb     string
	thumbErr  error
}

// String returns the Account's ID or an empty string if it has not been
// created with the ACME server.
func (a *Account) String() string {
	return a.ID
}

// Thumbprint returns the stable digest of the account's public key, computing
// it on first use and caching it thereafter. It is the shared secret
// component of every key authorization derived for this account.
func (a *Account) Thumbprint() (string, error) {
	a.thumbOnce.Do(func() {
		if a.Signer == nil {
			a.thumbErr = fmt.Errorf("account has no private key")
			return
		}
		a.thumb, a.thumbErr = keys.Thumbprint(a.Signer.Public())
	})
	return a.thumb, a.thumbErr
}

// NewAccount creates an ACME account in-memory. *Important:* the created
// Account is *not* registered with the ACME server until it is explicitly
// "created" server-side using a Client instance's CreateAccount function.
//
// The emails argument is a slice of zero or more email addresses that should
// be used as the Account's Contact information.
//
// The signer argument is a private key that should be used for the Account
// keypair. If nil a new randomly generated P-256 key is used.
func NewAccount(emails []string, signer crypto.Signer) (*Account, error) {
	var contacts []string
	for _, e := range emails {
		if e == "" {
			continue
		}
		contacts = append(contacts, fmt.Sprintf("mailto:%s", e))
	}

	if signer == nil {
		randKey, err := keys.NewSigner()
		if err != nil {
			return nil, err
		}
		signer = randKey
	}

	return &Account{
		Contact: contacts,
		Signer:  signer,
	}, nil
}

// rawAccount is the on-disk serialization of an Account.
type rawAccount struct {
	ID         string
	Contact    []string
	PrivateKey []byte
}

// SaveAccount persists the given Account object (which must not be nil) to
// the given file path. If any errors occur serializing the account it will be
// returned.
func SaveAccount(path string, account *Account) error {
	if account == nil {
		return fmt.Errorf("account must not be nil")
	}

	keyBytes, err := keys.MarshalSigner(account.Signer)
	if err != nil {
		return err
	}

	frozen, err := json.MarshalIndent(rawAccount{
		ID:         account.ID,
		Contact:    account.Contact,
		PrivateKey: keyBytes,
	}, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, frozen, 0600)
}

// RestoreAccount loads a previously saved Account object from the given file
// path. This file should have been created using SaveAccount in a previous
// session.
func RestoreAccount(path string) (*Account, error) {
	frozen, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw rawAccount
	if err := json.Unmarshal(frozen, &raw); err != nil {
		return nil, fmt.Errorf("error restoring account from %q: %s", path, err)
	}

	signer, err := keys.UnmarshalSigner(raw.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("error restoring account key from %q: %s", path, err)
	}

	return &Account{
		ID:      raw.ID,
		Contact: raw.Contact,
		Signer:  signer,
	}, nil
}
