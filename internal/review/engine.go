package review

import (
	"errors"

	"github.com/davidahmann/geogate/internal/policy"
	"github.com/davidahmann/geogate/pkg/types"
)

var ErrMissingFindings = errors.New("review: analysis findings are missing")

// Decide corrects draft against findings. The draft is copied and findings are
// only read, so identical inputs always yield identical records.
func Decide(draft types.DecisionRecord, findings *types.AnalysisFindings, cfg Config) (types.DecisionRecord, types.DecisionTrace, error) {
	if findings == nil {
		return types.DecisionRecord{}, types.DecisionTrace{}, ErrMissingFindings
	}
	if err := findings.Validate(); err != nil {
		return types.DecisionRecord{}, types.DecisionTrace{}, err
	}

	m := cfg.Model
	rec := draft.Clone()
	trace := types.DecisionTrace{
		DraftDecision:   draft.Decision,
		DraftConfidence: draft.Confidence,
	}

	scores := m.Aggregate(findings.Findings)
	penalty, hasBlocking := m.Penalty(findings.OpenQuestions)
	approveAdj, rejectAdj := m.ApplyPenalty(scores.Approve, scores.Reject, penalty)

	trace.ApproveScore = scores.Approve
	trace.RejectScore = scores.Reject
	trace.Penalty = penalty
	trace.HasBlocking = hasBlocking
	trace.ApproveAdjusted = approveAdj
	trace.RejectAdjusted = rejectAdj
	trace.Margin = approveAdj - rejectAdj

	verdict := policy.Evaluate(cfg.Thresholds, policy.Input{
		ApproveAdjusted: approveAdj,
		RejectAdjusted:  rejectAdj,
		HasBlocking:     hasBlocking,
		StrictHITL:      cfg.StrictHITL,
	})
	rec.Decision = verdict.Verdict
	trace.StrictOverride = verdict.StrictOverride

	if verdict.StrictOverride {
		rec.HITLRecommended = true
		rec.HITLReasons = []string{policy.ReasonBlockingQuestions}
	} else if !cfg.StrictHITL && cfg.AllowConditionSubstitution && len(findings.OpenQuestions) > 0 {
		rec.Conditions, trace.ConditionsAdded = mergeConditions(rec.Conditions, SynthesizeConditions(findings.OpenQuestions, cfg.MaxConditions))
	}

	rec.Citations, trace.CitationsBackfilled = validateCitations(draft.Citations, findings.AllEvidence(), cfg.MaxCitations)

	rec.Confidence, trace.AlgorithmConfidence = m.Blend(approveAdj, rejectAdj, draft.Confidence)

	if rec.Decision == types.VerdictApproveWithConditions && len(rec.Conditions) == 0 {
		rec.Conditions = []string{ConditionFallbackSafeguard}
	}

	if !cfg.StrictHITL {
		rec.HITLRecommended = false
		rec.HITLReasons = []string{}
	}

	if ShouldEscalate(rec.Confidence, hasBlocking, cfg.SoftGateConfidenceThreshold) {
		applySoftGate(&rec)
		trace.SoftGateFired = true
	}

	return rec, trace, nil
}

// DecideDefault runs Decide with the built-in policy.
func DecideDefault(draft types.DecisionRecord, findings *types.AnalysisFindings) (types.DecisionRecord, error) {
	rec, _, err := Decide(draft, findings, DefaultConfig())
	return rec, err
}
