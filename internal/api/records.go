package api

import (
	"encoding/json"
	"fmt"

	"github.com/davidahmann/geogate/internal/decision"
	"github.com/davidahmann/geogate/internal/ledger"
	"github.com/davidahmann/geogate/pkg/types"
)

// Conversions between wire records and ledger rows.

func featureRow(f types.FeatureRecord) (ledger.FeatureRecord, error) {
	body, err := json.Marshal(f)
	if err != nil {
		return ledger.FeatureRecord{}, err
	}
	return ledger.FeatureRecord{
		FeatureID: f.FeatureID,
		SessionID: f.SessionID,
		Name:      f.Name,
		BodyJSON:  body,
		CreatedAt: f.CreatedAt,
	}, nil
}

func featureFromRow(row ledger.FeatureRecord) (types.FeatureRecord, error) {
	var f types.FeatureRecord
	if err := json.Unmarshal(row.BodyJSON, &f); err != nil {
		return types.FeatureRecord{}, fmt.Errorf("decode feature %s: %w", row.FeatureID, err)
	}
	return f, nil
}

func decisionRow(env types.DecisionEnvelope) (ledger.DecisionRecord, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return ledger.DecisionRecord{}, err
	}
	var supersedes *string
	if env.Supersedes != "" {
		s := env.Supersedes
		supersedes = &s
	}
	return ledger.DecisionRecord{
		DecisionID:           env.DecisionID,
		FeatureID:            env.FeatureID,
		SessionID:            env.SessionID,
		PolicyHash:           env.Policy.PolicyHash,
		Verdict:              string(env.Record.Decision),
		ConfidenceMilli:      decision.Milli(env.Record.Confidence),
		HITLRecommended:      env.Record.HITLRecommended,
		SupersedesDecisionID: supersedes,
		BodyJSON:             body,
		CreatedAt:            env.CreatedAt,
	}, nil
}

func decisionFromRow(row ledger.DecisionRecord) (types.DecisionEnvelope, error) {
	var env types.DecisionEnvelope
	if err := json.Unmarshal(row.BodyJSON, &env); err != nil {
		return types.DecisionEnvelope{}, fmt.Errorf("decode decision %s: %w", row.DecisionID, err)
	}
	return env, nil
}

func taskRow(t types.ReviewTask, resolvedBy, resolvedAt *string) (ledger.ReviewTaskRecord, error) {
	reasons := t.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	body, err := json.Marshal(reasons)
	if err != nil {
		return ledger.ReviewTaskRecord{}, err
	}
	return ledger.ReviewTaskRecord{
		TaskID:      t.TaskID,
		DecisionID:  t.DecisionID,
		FeatureID:   t.FeatureID,
		SessionID:   t.SessionID,
		Status:      string(t.Status),
		ReasonsJSON: body,
		ResolvedBy:  resolvedBy,
		ResolvedAt:  resolvedAt,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}, nil
}

func taskFromRow(row ledger.ReviewTaskRecord) types.ReviewTask {
	reasons := []string{}
	_ = json.Unmarshal(row.ReasonsJSON, &reasons)
	return types.ReviewTask{
		TaskID:     row.TaskID,
		DecisionID: row.DecisionID,
		FeatureID:  row.FeatureID,
		SessionID:  row.SessionID,
		Status:     types.TaskStatus(row.Status),
		Reasons:    reasons,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
}

func reviewRow(r types.Review) (ledger.ReviewRecord, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return ledger.ReviewRecord{}, err
	}
	var decisionID *string
	if r.DecisionID != "" {
		id := r.DecisionID
		decisionID = &id
	}
	return ledger.ReviewRecord{
		ReviewID:   r.ReviewID,
		TaskID:     r.TaskID,
		FeatureID:  r.FeatureID,
		Reviewer:   r.Reviewer,
		DecisionID: decisionID,
		BodyJSON:   body,
		CreatedAt:  r.CreatedAt,
	}, nil
}

func reviewFromRow(row ledger.ReviewRecord) (types.Review, error) {
	var r types.Review
	if err := json.Unmarshal(row.BodyJSON, &r); err != nil {
		return types.Review{}, fmt.Errorf("decode review %s: %w", row.ReviewID, err)
	}
	return r, nil
}
