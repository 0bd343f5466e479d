package types

import "encoding/json"

type Verdict string

const (
	VerdictRequiresRegulation    Verdict = "requires_regulation"
	VerdictApproveWithConditions Verdict = "approve_with_conditions"
	VerdictAutoApprove           Verdict = "auto_approve"
	VerdictInsufficientInfo      Verdict = "insufficient_info"
)

func (v Verdict) Valid() bool {
	switch v {
	case VerdictRequiresRegulation, VerdictApproveWithConditions, VerdictAutoApprove, VerdictInsufficientInfo:
		return true
	default:
		return false
	}
}

func (v *Verdict) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	verdict := Verdict(raw)
	if !verdict.Valid() {
		return &ValidationError{Field: "decision", Value: raw}
	}
	*v = verdict
	return nil
}

// DecisionRecord is the reviewer verdict. The language model produces a draft;
// the review engine corrects it into the authoritative record.
type DecisionRecord struct {
	Decision        Verdict  `json:"decision"`
	Confidence      float64  `json:"confidence"`
	Justification   string   `json:"justification"`
	Conditions      []string `json:"conditions"`
	Citations       []string `json:"citations"`
	HITLRecommended bool     `json:"hitl_recommended"`
	HITLReasons     []string `json:"hitl_reasons"`
}

// Clone returns a deep copy so callers never share slices with the draft.
func (r DecisionRecord) Clone() DecisionRecord {
	out := r
	out.Conditions = append([]string{}, r.Conditions...)
	out.Citations = append([]string{}, r.Citations...)
	out.HITLReasons = append([]string{}, r.HITLReasons...)
	return out
}

// DecisionTrace holds the deterministic values behind a verdict, kept for audit.
type DecisionTrace struct {
	ApproveScore        float64 `json:"approve_score"`
	RejectScore         float64 `json:"reject_score"`
	Penalty             float64 `json:"penalty"`
	HasBlocking         bool    `json:"has_blocking"`
	ApproveAdjusted     float64 `json:"approve_adjusted"`
	RejectAdjusted      float64 `json:"reject_adjusted"`
	Margin              float64 `json:"margin"`
	AlgorithmConfidence float64 `json:"algorithm_confidence"`
	DraftDecision       Verdict `json:"draft_decision"`
	DraftConfidence     float64 `json:"draft_confidence"`
	StrictOverride      bool    `json:"strict_override"`
	CitationsBackfilled bool    `json:"citations_backfilled"`
	ConditionsAdded     int     `json:"conditions_added"`
	SoftGateFired       bool    `json:"soft_gate_fired"`
}

type DecisionPolicy struct {
	PolicyID      string `json:"policy_id"`
	PolicyVersion string `json:"policy_version"`
	PolicyHash    string `json:"policy_hash"`
}

// DecisionEnvelope is the persisted form of a corrected decision.
type DecisionEnvelope struct {
	Schema     string         `json:"schema"`
	DecisionID string         `json:"decision_id"`
	CreatedAt  string         `json:"created_at"`
	SessionID  string         `json:"session_id"`
	FeatureID  string         `json:"feature_id"`
	Supersedes string         `json:"supersedes_decision_id,omitempty"`
	Policy     DecisionPolicy `json:"policy"`
	Record     DecisionRecord `json:"record"`
	Trace      DecisionTrace  `json:"trace"`
}
