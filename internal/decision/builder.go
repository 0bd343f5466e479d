package decision

import (
	"math"

	"github.com/davidahmann/geogate/internal/crypto"
	"github.com/davidahmann/geogate/pkg/types"
)

const DecisionSchema = "geogate.decision.v0.1"

// BuildDecision wraps a corrected record in an envelope and computes its
// decision_id. Floats cannot be canonicalized, so confidence enters the
// signing view as integer thousandths and the trace stays out of it.
// created_at is excluded as for features.
func BuildDecision(featureID, sessionID string, policy types.DecisionPolicy, record types.DecisionRecord, trace types.DecisionTrace, supersedes string, createdAt string) (types.DecisionEnvelope, error) {
	env := types.DecisionEnvelope{
		Schema:     DecisionSchema,
		CreatedAt:  createdAt,
		SessionID:  sessionID,
		FeatureID:  featureID,
		Supersedes: supersedes,
		Policy:     policy,
		Record:     record.Clone(),
		Trace:      trace,
	}

	signingView := map[string]any{
		"schema":     env.Schema,
		"session_id": env.SessionID,
		"feature_id": env.FeatureID,
		"policy": map[string]any{
			"policy_id":      env.Policy.PolicyID,
			"policy_version": env.Policy.PolicyVersion,
			"policy_hash":    env.Policy.PolicyHash,
		},
		"record": RecordView(env.Record),
	}
	if supersedes != "" {
		signingView["supersedes_decision_id"] = supersedes
	}

	id, _, err := crypto.CanonicalDigest(signingView)
	if err != nil {
		return types.DecisionEnvelope{}, err
	}
	env.DecisionID = id
	return env, nil
}

// RecordView renders a DecisionRecord for canonicalization.
func RecordView(r types.DecisionRecord) map[string]any {
	return map[string]any{
		"decision":         string(r.Decision),
		"confidence_milli": Milli(r.Confidence),
		"justification":    r.Justification,
		"conditions":       nonNil(r.Conditions),
		"citations":        nonNil(r.Citations),
		"hitl_recommended": r.HITLRecommended,
		"hitl_reasons":     nonNil(r.HITLReasons),
	}
}

func Milli(v float64) int64 {
	return int64(math.Round(v * 1000))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
