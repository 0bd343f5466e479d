package api

import (
	"fmt"

	"github.com/davidahmann/geogate/internal/grade"
	"github.com/davidahmann/geogate/internal/ledger"
	"github.com/davidahmann/geogate/internal/summary"
	"github.com/davidahmann/geogate/pkg/types"
)

type VerifyResult struct {
	ReceiptID     string              `json:"receipt_id"`
	Valid         bool                `json:"valid"`
	Error         string              `json:"error,omitempty"`
	DecisionID    string              `json:"decision_id"`
	OutcomeStatus types.OutcomeStatus `json:"outcome_status"`
	Final         bool                `json:"final"`
	KeyID         string              `json:"key_id"`
}

type GradeResult struct {
	DecisionID string `json:"decision_id"`
	ReceiptID  string `json:"receipt_id"`
	grade.Result
}

func (s *ReviewService) GetDecision(decisionID string) (types.DecisionEnvelope, error) {
	row, ok := s.store.GetDecision(decisionID)
	if !ok {
		return types.DecisionEnvelope{}, fmt.Errorf("decision %s: %w", decisionID, ErrNotFound)
	}
	return decisionFromRow(row)
}

func (s *ReviewService) ListSessionDecisions(sessionID string) ([]types.DecisionEnvelope, error) {
	rows, err := s.store.ListDecisionsBySession(sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]types.DecisionEnvelope, 0, len(rows))
	for _, row := range rows {
		env, err := decisionFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, nil
}

// reviewed reports whether a human has settled the decision, either because
// it was produced by a review or because its task is no longer pending.
func (s *ReviewService) reviewed(decisionID string) bool {
	if r, ok := s.store.GetReceiptByDecision(decisionID); ok && r.OutcomeStatus == string(types.OutcomeReviewed) {
		return true
	}
	task, ok := s.store.GetReviewTaskByDecision(decisionID)
	return ok && task.Status != string(types.TaskPending)
}

func (s *ReviewService) Summary(decisionID string) (summary.Envelope, error) {
	env, err := s.GetDecision(decisionID)
	if err != nil {
		return summary.Envelope{}, err
	}
	row, ok := s.store.GetFeature(env.FeatureID)
	if !ok {
		return summary.Envelope{}, fmt.Errorf("feature %s: %w", env.FeatureID, ErrNotFound)
	}
	feat, err := featureFromRow(row)
	if err != nil {
		return summary.Envelope{}, err
	}
	return summary.Build(feat, env, s.reviewed(decisionID)), nil
}

func (s *ReviewService) Grade(decisionID string) (GradeResult, error) {
	env, err := s.GetDecision(decisionID)
	if err != nil {
		return GradeResult{}, err
	}
	row, ok := s.store.GetReceiptByDecision(decisionID)
	if !ok {
		return GradeResult{}, fmt.Errorf("receipt for decision %s: %w", decisionID, ErrNotFound)
	}
	receipt := ledger.StoredFromRecord(row)
	valid := ledger.VerifyStoredReceipt(s.store, receipt) == nil

	return GradeResult{
		DecisionID: decisionID,
		ReceiptID:  receipt.ReceiptID,
		Result: grade.Evaluate(grade.Input{
			Valid:    valid,
			Receipt:  receipt,
			Decision: &env,
			Reviewed: s.reviewed(decisionID),
		}),
	}, nil
}

func (s *ReviewService) Verify(receiptID string) (VerifyResult, error) {
	row, ok := s.store.GetReceipt(receiptID)
	if !ok {
		return VerifyResult{}, fmt.Errorf("receipt %s: %w", receiptID, ErrNotFound)
	}
	receipt := ledger.StoredFromRecord(row)
	out := VerifyResult{
		ReceiptID:     receipt.ReceiptID,
		Valid:         true,
		DecisionID:    receipt.DecisionID,
		OutcomeStatus: receipt.OutcomeStatus,
		Final:         receipt.Final,
		KeyID:         receipt.KeyID,
	}
	if err := ledger.VerifyStoredReceipt(s.store, receipt); err != nil {
		out.Valid = false
		out.Error = err.Error()
	}
	return out, nil
}

func (s *ReviewService) ListTasks(status string, limit int) ([]types.ReviewTask, error) {
	switch types.TaskStatus(status) {
	case "", types.TaskPending, types.TaskResolved, types.TaskDismissed:
	default:
		return nil, &types.ValidationError{Field: "status", Value: status}
	}
	rows, err := s.store.ListReviewTasks(status, limit)
	if err != nil {
		return nil, err
	}
	out := make([]types.ReviewTask, 0, len(rows))
	for _, row := range rows {
		out = append(out, taskFromRow(row))
	}
	return out, nil
}

func (s *ReviewService) ListReviews(featureID string) ([]types.Review, error) {
	rows, err := s.store.ListReviewsByFeature(featureID)
	if err != nil {
		return nil, err
	}
	out := make([]types.Review, 0, len(rows))
	for _, row := range rows {
		r, err := reviewFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
