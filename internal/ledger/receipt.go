package ledger

import (
	"errors"
	"fmt"

	"github.com/davidahmann/geogate/internal/crypto"
	"github.com/davidahmann/geogate/pkg/types"
)

const ReceiptSchema = "geogate.receipt.v0.1"

var ErrMissingReceiptID = errors.New("missing receipt_id")

type Signer interface {
	KeyID() string
	SignEd25519(message []byte) ([]byte, error)
}

type MakeReceiptInput struct {
	Schema    string
	CreatedAt string

	IdemKey             string
	SupersedesReceiptID *string

	FeatureID  string
	DecisionID string

	Actor   types.ReceiptActor
	Policy  types.ReceiptPolicy
	Review  *types.ReceiptReview
	Outcome types.ReceiptOutcome

	// ConfidenceMilli is the final confidence in thousandths.
	ConfidenceMilli int64
}

type StoredReceipt struct {
	ReceiptID  string
	BodyDigest string
	BodyJSON   []byte
	KeyID      string
	Sig        []byte

	IdemKey             string
	CreatedAt           string
	SupersedesReceiptID *string
	FeatureID           string
	DecisionID          string
	OutcomeStatus       types.OutcomeStatus
	TaskID              *string
	PolicyHash          string
	Final               bool
}

// MakeReceipt canonicalizes + hashes + signs a receipt body.
func MakeReceipt(in MakeReceiptInput, signer Signer) (StoredReceipt, error) {
	if in.Schema == "" {
		in.Schema = ReceiptSchema
	}
	if in.Schema != ReceiptSchema {
		return StoredReceipt{}, fmt.Errorf("invalid schema: %s", in.Schema)
	}
	if in.IdemKey == "" || in.FeatureID == "" || in.DecisionID == "" || in.Policy.PolicyHash == "" {
		return StoredReceipt{}, fmt.Errorf("missing required receipt fields")
	}
	if !validOutcome(in.Outcome.Status) {
		return StoredReceipt{}, fmt.Errorf("invalid outcome status: %s", in.Outcome.Status)
	}
	if !in.Outcome.Decision.Valid() {
		return StoredReceipt{}, fmt.Errorf("invalid outcome decision: %s", in.Outcome.Decision)
	}
	if signer == nil {
		return StoredReceipt{}, fmt.Errorf("missing signer")
	}

	body := map[string]any{
		"schema":                in.Schema,
		"created_at":            in.CreatedAt,
		"feature_id":            in.FeatureID,
		"decision_id":           in.DecisionID,
		"supersedes_receipt_id": in.SupersedesReceiptID,
		"actor": map[string]any{
			"kind":    in.Actor.Kind,
			"subject": in.Actor.Subject,
			"issuer":  in.Actor.Issuer,
		},
		"policy": map[string]any{
			"policy_id":      in.Policy.PolicyID,
			"policy_version": in.Policy.PolicyVersion,
			"policy_hash":    in.Policy.PolicyHash,
		},
		"outcome": map[string]any{
			"status":           string(in.Outcome.Status),
			"decision":         string(in.Outcome.Decision),
			"confidence_milli": in.ConfidenceMilli,
		},
	}
	if in.Review != nil {
		review := map[string]any{"required": in.Review.Required}
		if in.Review.TaskID != "" {
			review["task_id"] = in.Review.TaskID
		}
		if in.Review.Status != "" {
			review["status"] = in.Review.Status
		}
		body["review"] = review
	}

	canonical, err := crypto.Canonicalize(body)
	if err != nil {
		return StoredReceipt{}, err
	}

	digestBytes := crypto.DigestBytes(canonical)
	bodyDigest := crypto.DigestWithPrefix(canonical)

	sig, err := signer.SignEd25519(digestBytes)
	if err != nil {
		return StoredReceipt{}, err
	}

	var taskID *string
	if in.Review != nil && in.Review.TaskID != "" {
		id := in.Review.TaskID
		taskID = &id
	}

	return StoredReceipt{
		ReceiptID:           bodyDigest,
		BodyDigest:          bodyDigest,
		BodyJSON:            canonical,
		KeyID:               signer.KeyID(),
		Sig:                 sig,
		IdemKey:             in.IdemKey,
		CreatedAt:           in.CreatedAt,
		SupersedesReceiptID: in.SupersedesReceiptID,
		FeatureID:           in.FeatureID,
		DecisionID:          in.DecisionID,
		OutcomeStatus:       in.Outcome.Status,
		TaskID:              taskID,
		PolicyHash:          in.Policy.PolicyHash,
		Final:               isFinalOutcome(in.Outcome.Status),
	}, nil
}

// Record converts a StoredReceipt to its ledger row.
func (r StoredReceipt) Record() ReceiptRecord {
	return ReceiptRecord{
		ReceiptID:           r.ReceiptID,
		IdemKey:             r.IdemKey,
		CreatedAt:           r.CreatedAt,
		SupersedesReceiptID: r.SupersedesReceiptID,
		FeatureID:           r.FeatureID,
		DecisionID:          r.DecisionID,
		PolicyHash:          r.PolicyHash,
		TaskID:              r.TaskID,
		OutcomeStatus:       string(r.OutcomeStatus),
		Final:               r.Final,
		BodyJSON:            r.BodyJSON,
		BodyDigest:          r.BodyDigest,
		KeyID:               r.KeyID,
		Sig:                 r.Sig,
	}
}

// StoredFromRecord is the inverse of Record.
func StoredFromRecord(rec ReceiptRecord) StoredReceipt {
	return StoredReceipt{
		ReceiptID:           rec.ReceiptID,
		BodyDigest:          rec.BodyDigest,
		BodyJSON:            rec.BodyJSON,
		KeyID:               rec.KeyID,
		Sig:                 rec.Sig,
		IdemKey:             rec.IdemKey,
		CreatedAt:           rec.CreatedAt,
		SupersedesReceiptID: rec.SupersedesReceiptID,
		FeatureID:           rec.FeatureID,
		DecisionID:          rec.DecisionID,
		OutcomeStatus:       types.OutcomeStatus(rec.OutcomeStatus),
		TaskID:              rec.TaskID,
		PolicyHash:          rec.PolicyHash,
		Final:               rec.Final,
	}
}

func validOutcome(status types.OutcomeStatus) bool {
	switch status {
	case types.OutcomeDecided, types.OutcomeEscalated, types.OutcomeReviewed:
		return true
	default:
		return false
	}
}

// An escalated decision stays open until a human review lands.
func isFinalOutcome(status types.OutcomeStatus) bool {
	switch status {
	case types.OutcomeDecided, types.OutcomeReviewed:
		return true
	default:
		return false
	}
}
