package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"
)

var ErrInvalidDigestLen = errors.New("invalid digest length")

// SignEd25519 signs a sha256 digest. Receipts are signed over the digest of
// their canonical body, never over the body itself.
func SignEd25519(priv ed25519.PrivateKey, digest []byte) ([]byte, error) {
	if len(digest) != sha256.Size {
		return nil, ErrInvalidDigestLen
	}
	return ed25519.Sign(priv, digest), nil
}

func VerifyEd25519(pub ed25519.PublicKey, digest, sig []byte) (bool, error) {
	if len(digest) != sha256.Size {
		return false, ErrInvalidDigestLen
	}
	return ed25519.Verify(pub, digest, sig), nil
}

// Ed25519Signer signs receipt digests with an in-process key.
type Ed25519Signer struct {
	keyID string
	priv  ed25519.PrivateKey
}

func NewEd25519Signer(keyID string, priv ed25519.PrivateKey) (*Ed25519Signer, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid ed25519 private key length: %d", len(priv))
	}
	if keyID == "" {
		keyID = KeyIDFor(priv.Public().(ed25519.PublicKey))
	}
	return &Ed25519Signer{keyID: keyID, priv: priv}, nil
}

func (s *Ed25519Signer) KeyID() string {
	return s.keyID
}

func (s *Ed25519Signer) SignEd25519(digest []byte) ([]byte, error) {
	return SignEd25519(s.priv, digest)
}

func (s *Ed25519Signer) PublicKey() ed25519.PublicKey {
	return s.priv.Public().(ed25519.PublicKey)
}

// KeyIDFor names a public key by the first 16 hex characters of its digest.
func KeyIDFor(pub ed25519.PublicKey) string {
	return "ed25519:" + DigestHex(pub)[:16]
}
