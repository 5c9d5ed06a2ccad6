package inverter

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/icodeforyou/pvsoiling/types"
)

var (
	ErrInvalidEncryptionKey = errors.New("encryption key must be 64 hex characters (32 bytes)")
	ErrCannotDecrypt        = errors.New("cannot decrypt credentials, please reconfigure the integration")
)

const (
	ivSize  = 12
	tagSize = 16
)

// Vault encrypts credential records with AES-256-GCM. The ciphertext, IV and
// tag are kept apart so that each can be stored in its own column.
type Vault struct {
	aead cipher.AEAD
}

func NewVault(hexKey string) (*Vault, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil || len(key) != 32 {
		return nil, ErrInvalidEncryptionKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithTagSize(block, tagSize)
	if err != nil {
		return nil, fmt.Errorf("creating gcm: %w", err)
	}
	return &Vault{aead: aead}, nil
}

func (v *Vault) Encrypt(plaintext []byte) (types.EncryptedCredentials, error) {
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return types.EncryptedCredentials{}, fmt.Errorf("generating iv: %w", err)
	}

	sealed := v.aead.Seal(nil, iv, plaintext, nil)
	split := len(sealed) - tagSize
	return types.EncryptedCredentials{
		Ciphertext: sealed[:split:split],
		IV:         iv,
		Tag:        sealed[split:],
	}, nil
}

func (v *Vault) Decrypt(ec types.EncryptedCredentials) ([]byte, error) {
	if len(ec.IV) != ivSize || len(ec.Tag) != tagSize {
		return nil, ErrCannotDecrypt
	}

	sealed := make([]byte, 0, len(ec.Ciphertext)+tagSize)
	sealed = append(sealed, ec.Ciphertext...)
	sealed = append(sealed, ec.Tag...)

	plaintext, err := v.aead.Open(nil, ec.IV, sealed, nil)
	if err != nil {
		return nil, ErrCannotDecrypt
	}
	return plaintext, nil
}

// Seal serializes and encrypts provider credentials.
func (v *Vault) Seal(c Credentials) (types.EncryptedCredentials, error) {
	data, err := EncodeCredentials(c)
	if err != nil {
		return types.EncryptedCredentials{}, err
	}
	return v.Encrypt(data)
}

// Open decrypts and decodes the credentials stored for an integration.
func (v *Vault) Open(p Provider, ec types.EncryptedCredentials) (Credentials, error) {
	data, err := v.Decrypt(ec)
	if err != nil {
		return nil, err
	}
	c, err := DecodeCredentials(p, data)
	if err != nil {
		if errors.Is(err, ErrUnknownProvider) {
			return nil, err
		}
		// Stored credentials that no longer decode need a new configuration too.
		return nil, fmt.Errorf("%w: %w", ErrCannotDecrypt, err)
	}
	return c, nil
}
