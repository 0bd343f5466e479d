package policy

import "github.com/davidahmann/geogate/pkg/types"

const ReasonBlockingQuestions = "Blocking open questions present."

type Input struct {
	ApproveAdjusted float64
	RejectAdjusted  float64
	HasBlocking     bool
	StrictHITL      bool
}

type Decision struct {
	Verdict        types.Verdict
	StrictOverride bool
	MatchedRule    string
	ReasonCodes    []string
}

// Evaluate applies the verdict rules in order; the first match wins.
// auto_approve means "no geo-specific logic needed", so it follows from strong
// reject evidence.
func Evaluate(t Thresholds, input Input) Decision {
	if input.StrictHITL && input.HasBlocking {
		return Decision{
			Verdict:        types.VerdictInsufficientInfo,
			StrictOverride: true,
			MatchedRule:    "strict_blocking",
			ReasonCodes:    []string{"STRICT_HITL", "BLOCKING_QUESTIONS"},
		}
	}

	switch {
	case input.ApproveAdjusted >= t.RequiresRegulation:
		return decided(types.VerdictRequiresRegulation, "approve_strong")
	case input.RejectAdjusted >= t.AutoApprove:
		return decided(types.VerdictAutoApprove, "reject_strong")
	case input.ApproveAdjusted >= t.ApproveWithConditions:
		return decided(types.VerdictApproveWithConditions, "approve_moderate")
	default:
		return decided(types.VerdictInsufficientInfo, "fallthrough")
	}
}

func decided(v types.Verdict, rule string) Decision {
	return Decision{
		Verdict:     v,
		MatchedRule: rule,
		ReasonCodes: []string{"RULE:" + rule},
	}
}
