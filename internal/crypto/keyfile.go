package crypto

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrInvalidSeedSize = errors.New("invalid ed25519 seed size")

// KeyPairFromSeed derives an Ed25519 keypair from a 32-byte seed.
func KeyPairFromSeed(seed []byte) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, nil, ErrInvalidSeedSize
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return priv, priv.Public().(ed25519.PublicKey), nil
}

// LoadEd25519PrivateKey reads a signing key file holding either a 32-byte
// seed or a 64-byte private key, raw or encoded. Encoded files may carry a
// "hex:" or "base64:" prefix; unprefixed text is tried as hex, standard
// base64 and then URL-safe base64.
func LoadEd25519PrivateKey(path string) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	// #nosec G304 -- path is operator-configured.
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	material, err := decodeKeyMaterial(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("signing key %s: %w", path, err)
	}

	switch len(material) {
	case ed25519.SeedSize:
		return KeyPairFromSeed(material)
	case ed25519.PrivateKeySize:
		priv := ed25519.PrivateKey(material)
		return priv, priv.Public().(ed25519.PublicKey), nil
	default:
		return nil, nil, fmt.Errorf("signing key %s: unsupported length %d", path, len(material))
	}
}

// LoadSigner reads a key file and wraps it in a signer. An empty keyID is
// derived from the public key.
func LoadSigner(path, keyID string) (*Ed25519Signer, error) {
	priv, _, err := LoadEd25519PrivateKey(path)
	if err != nil {
		return nil, err
	}
	return NewEd25519Signer(keyID, priv)
}

var textDecoders = []func(string) ([]byte, error){
	hex.DecodeString,
	base64.StdEncoding.DecodeString,
	base64.RawURLEncoding.DecodeString,
}

func decodeKeyMaterial(raw []byte) ([]byte, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, errors.New("empty key file")
	}
	if rest, ok := strings.CutPrefix(text, "base64:"); ok {
		return base64.StdEncoding.DecodeString(rest)
	}
	if rest, ok := strings.CutPrefix(text, "hex:"); ok {
		return hex.DecodeString(rest)
	}

	// Binary key files are taken as-is.
	if n := len(raw); n == ed25519.SeedSize || n == ed25519.PrivateKeySize {
		return raw, nil
	}
	for _, decode := range textDecoders {
		if out, err := decode(text); err == nil {
			return out, nil
		}
	}
	return nil, errors.New("unrecognized key encoding")
}
