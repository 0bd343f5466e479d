package api

import "github.com/davidahmann/geogate/pkg/types"

type NextAction string

const (
	ActionRecordFinal NextAction = "record_final"
	ActionOpenReview  NextAction = "open_review"
)

// TransitionFromDecision maps a corrected record to its receipt outcome and
// the follow-up the service must take.
func TransitionFromDecision(rec types.DecisionRecord) (types.OutcomeStatus, NextAction) {
	if rec.HITLRecommended {
		return types.OutcomeEscalated, ActionOpenReview
	}
	return types.OutcomeDecided, ActionRecordFinal
}
