package grade

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/davidahmann/geogate/internal/ledger"
	"github.com/davidahmann/geogate/internal/review"
	"github.com/davidahmann/geogate/pkg/types"
)

type Result struct {
	Grade   string   `json:"grade"`
	Reasons []string `json:"reasons"`
}

type Input struct {
	Valid    bool
	Receipt  ledger.StoredReceipt
	Decision *types.DecisionEnvelope
	// Reviewed is true once a human review has been recorded for the decision.
	Reviewed bool
}

type receiptBody struct {
	Policy  types.ReceiptPolicy  `json:"policy"`
	Review  *types.ReceiptReview `json:"review,omitempty"`
	Outcome types.ReceiptOutcome `json:"outcome"`
}

// Evaluate grades the audit quality of one stored decision.
func Evaluate(in Input) Result {
	if !in.Valid {
		return Result{Grade: "F", Reasons: []string{"invalid_signature"}}
	}

	var body receiptBody
	_ = json.Unmarshal(in.Receipt.BodyJSON, &body)

	missing := map[string]bool{}

	if body.Policy.PolicyHash == "" && in.Receipt.PolicyHash == "" {
		missing["policy_hash"] = true
	}

	reviewRequired := false
	reviewed := in.Reviewed || body.Outcome.Status == types.OutcomeReviewed
	if body.Review != nil && body.Review.Required {
		reviewRequired = true
	}

	if in.Decision != nil {
		rec := in.Decision.Record
		if in.Decision.Policy.PolicyHash == "" {
			missing["decision_policy_hash"] = true
		}
		if rec.HITLRecommended {
			reviewRequired = true
		}
		if len(rec.Citations) == 0 {
			missing["citations"] = true
		}
		if strings.TrimSpace(rec.Justification) == "" {
			missing["justification"] = true
		}
		if rec.Decision == types.VerdictApproveWithConditions && onlyFallback(rec.Conditions) {
			missing["specific_conditions"] = true
		}
	}

	if reviewRequired && !reviewed {
		missing["review"] = true
	}

	// Heuristic grading.
	grade := "A"
	switch {
	case missing["policy_hash"] || missing["decision_policy_hash"]:
		grade = "F"
	case missing["review"]:
		grade = "D"
	case missing["citations"]:
		grade = "C"
	case missing["justification"] || missing["specific_conditions"]:
		grade = "B"
	}

	reasons := []string{}
	for k, v := range missing {
		if v {
			reasons = append(reasons, "missing_"+k)
		}
	}
	sort.Strings(reasons)

	return Result{Grade: grade, Reasons: reasons}
}

func onlyFallback(conditions []string) bool {
	return len(conditions) == 1 && conditions[0] == review.ConditionFallbackSafeguard
}
