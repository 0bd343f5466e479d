package scoring

import (
	"math"
	"strings"

	"github.com/davidahmann/geogate/pkg/types"
)

// Penalty folds open questions into a single value in [0,1]. Any blocking
// question sets hasBlocking.
func (m Model) Penalty(questions []types.OpenQuestion) (penalty float64, hasBlocking bool) {
	total := 0.0
	for _, q := range questions {
		total += m.severity(q.Category) * m.multiplier(q.Blocking)
		if q.Blocking {
			hasBlocking = true
		}
	}
	if m.Questions.Normalizer <= 0 {
		return clamp01(total), hasBlocking
	}
	return clamp01(total / m.Questions.Normalizer), hasBlocking
}

// ApplyPenalty discounts approve multiplicatively and nudges reject upward only
// once the penalty passes the nudge floor.
func (m Model) ApplyPenalty(approve, reject, penalty float64) (approveAdj, rejectAdj float64) {
	approveAdj = clamp01(approve * (1 - penalty))
	nudge := math.Max(0, penalty-m.Questions.RejectNudgeFloor) * m.Questions.RejectNudgeRate
	rejectAdj = clamp01(math.Min(1.0, reject+nudge))
	return approveAdj, rejectAdj
}

// severity scores an empty category as eng and any other unknown category at
// the default severity.
func (m Model) severity(c types.QuestionCategory) float64 {
	cat := types.QuestionCategory(strings.ToLower(strings.TrimSpace(string(c))))
	if cat == "" {
		cat = types.CategoryEng
	}
	if base, ok := m.Questions.Severity[cat]; ok {
		return base
	}
	return m.Questions.DefaultSeverity
}

func (m Model) multiplier(blocking bool) float64 {
	if blocking {
		return 1.0
	}
	return m.Questions.NonBlockingMultiplier
}
