package scoring

import (
	"math"

	"github.com/davidahmann/geogate/pkg/types"
)

// Scores is the directional summary of a finding set.
type Scores struct {
	Approve float64
	Reject  float64
	// Used is the evidence of every non-uncertain finding, in encounter order.
	Used []types.Evidence
}

func Direction(s types.Supports) float64 {
	switch s {
	case types.SupportsApprove:
		return 1
	case types.SupportsReject:
		return -1
	default:
		return 0
	}
}

// Aggregate sums signed finding strengths into approve and reject. Sums are
// clipped, not averaged, so agreeing findings saturate toward 1.
func (m Model) Aggregate(findings []types.Finding) Scores {
	out := Scores{Used: []types.Evidence{}}
	for _, f := range findings {
		dir := Direction(f.Supports)
		if dir == 0 {
			continue
		}
		signed := dir * m.Strength(f)
		if signed > 0 {
			out.Approve += signed
		} else {
			out.Reject += -signed
		}
		out.Used = append(out.Used, f.Evidence...)
	}
	out.Approve = math.Min(1.0, out.Approve)
	out.Reject = math.Min(1.0, out.Reject)
	return out
}
