// Package intake decodes and normalizes decide requests before they reach
// the review engine.
package intake

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/davidahmann/geogate/internal/crypto"
	"github.com/davidahmann/geogate/pkg/types"
)

var (
	ErrMissingFindings = errors.New("analysis_findings is required")
	ErrTrailingData    = errors.New("unexpected data after request body")
)

// MaxBodyBytes bounds a decide request body.
const MaxBodyBytes = 1 << 20

// DefaultDraftJustification is used when the caller supplies no draft.
const DefaultDraftJustification = "No draft verdict supplied; decided from findings."

type DecideRequest struct {
	SessionID          string                  `json:"session_id"`
	FeatureName        string                  `json:"feature_name"`
	FeatureDescription string                  `json:"feature_description"`
	Findings           *types.AnalysisFindings `json:"analysis_findings"`
	Draft              *types.DecisionRecord   `json:"draft,omitempty"`
}

// Decode reads one JSON request. Unknown fields and closed-enum violations
// are rejected.
func Decode(r io.Reader) (DecideRequest, error) {
	dec := json.NewDecoder(io.LimitReader(r, MaxBodyBytes))
	dec.DisallowUnknownFields()

	var req DecideRequest
	if err := dec.Decode(&req); err != nil {
		return DecideRequest{}, fmt.Errorf("decode request: %w", err)
	}
	if dec.More() {
		return DecideRequest{}, ErrTrailingData
	}
	return req, nil
}

// Normalize returns a copy with trimmed text, canonical question categories
// and a neutral draft when none was given. The receiver is not modified.
func (r DecideRequest) Normalize() (DecideRequest, error) {
	if r.Findings == nil {
		return DecideRequest{}, ErrMissingFindings
	}
	if err := r.Findings.Validate(); err != nil {
		return DecideRequest{}, err
	}

	out := DecideRequest{
		SessionID:          strings.TrimSpace(r.SessionID),
		FeatureName:        strings.TrimSpace(r.FeatureName),
		FeatureDescription: strings.TrimSpace(r.FeatureDescription),
	}

	af := types.AnalysisFindings{
		Findings:      make([]types.Finding, 0, len(r.Findings.Findings)),
		OpenQuestions: make([]types.OpenQuestion, 0, len(r.Findings.OpenQuestions)),
	}
	for _, f := range r.Findings.Findings {
		ev := make([]types.Evidence, 0, len(f.Evidence))
		for _, e := range f.Evidence {
			ev = append(ev, types.Evidence{Kind: e.Kind, Ref: strings.TrimSpace(e.Ref), Snippet: e.Snippet})
		}
		af.Findings = append(af.Findings, types.Finding{KeyPoint: strings.TrimSpace(f.KeyPoint), Supports: f.Supports, Evidence: ev})
	}
	for _, q := range r.Findings.OpenQuestions {
		af.OpenQuestions = append(af.OpenQuestions, types.OpenQuestion{
			Text:     strings.TrimSpace(q.Text),
			Category: q.Category.Normalized(),
			Blocking: q.Blocking,
		})
	}
	out.Findings = &af

	draft := DefaultDraft()
	if r.Draft != nil {
		draft = r.Draft.Clone()
		if !draft.Decision.Valid() {
			draft.Decision = types.VerdictInsufficientInfo
		}
		draft.Confidence = clamp01(draft.Confidence)
	}
	out.Draft = &draft
	return out, nil
}

// DefaultDraft is the neutral draft used when the upstream model produced none.
func DefaultDraft() types.DecisionRecord {
	return types.DecisionRecord{
		Decision:      types.VerdictInsufficientInfo,
		Confidence:    0.5,
		Justification: DefaultDraftJustification,
		Conditions:    []string{},
		Citations:     []string{},
		HITLReasons:   []string{},
	}
}

// Key is the idempotency key of a normalized request sent by actor. The
// same request from two callers yields two keys.
func (r DecideRequest) Key(actor types.ReceiptActor) (string, error) {
	body, err := json.Marshal(struct {
		Actor   types.ReceiptActor `json:"actor"`
		Request DecideRequest      `json:"request"`
	}{actor, r})
	if err != nil {
		return "", err
	}
	return "decide:" + crypto.DigestWithPrefix(body), nil
}

func clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
