package ledger

import (
	"crypto/ed25519"
	"errors"

	"github.com/davidahmann/geogate/internal/crypto"
)

var (
	ErrReceiptDigestMismatch = errors.New("receipt digest mismatch")
	ErrReceiptSignature      = errors.New("receipt signature invalid")
	ErrUnknownKey            = errors.New("receipt signing key unknown")
)

// VerifyReceipt checks that the receipt id and body digest both match the
// stored body, then checks the signature over that digest.
func VerifyReceipt(receipt StoredReceipt, publicKey ed25519.PublicKey) error {
	want := crypto.DigestWithPrefix(receipt.BodyJSON)
	if receipt.ReceiptID != want || receipt.BodyDigest != want {
		return ErrReceiptDigestMismatch
	}
	ok, err := crypto.VerifyEd25519(publicKey, crypto.DigestBytes(receipt.BodyJSON), receipt.Sig)
	switch {
	case err != nil:
		return err
	case !ok:
		return ErrReceiptSignature
	}
	return nil
}

// VerifyStoredReceipt resolves the signing key through the ledger, so
// receipts signed by a rotated-out key still verify.
func VerifyStoredReceipt(store Tx, receipt StoredReceipt) error {
	key, ok := store.GetKey(receipt.KeyID)
	if !ok || len(key.PublicKey) != ed25519.PublicKeySize {
		return ErrUnknownKey
	}
	return VerifyReceipt(receipt, ed25519.PublicKey(key.PublicKey))
}
