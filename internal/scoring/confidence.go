package scoring

import "math"

// Sigmoid squashes an approve/reject margin into (0,1).
func (m Model) Sigmoid(margin float64) float64 {
	return 1 / (1 + math.Exp(-m.Steepness*margin))
}

// Blend averages the draft's self-reported confidence with the algorithmic
// confidence from the adjusted margin, rounded to three decimals.
func (m Model) Blend(approveAdj, rejectAdj, draft float64) (final float64, algo float64) {
	algo = m.Sigmoid(approveAdj - rejectAdj)
	final = clamp01(Round3(0.5*clamp01(draft) + 0.5*algo))
	return final, algo
}

func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
