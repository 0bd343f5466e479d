package review

import "github.com/davidahmann/geogate/pkg/types"

const ReasonSoftGate = "Low confidence or unresolved blocking question(s)."

// ShouldEscalate reports whether a corrected record needs a human look. It
// never changes the verdict.
func ShouldEscalate(confidence float64, hasBlocking bool, threshold float64) bool {
	return hasBlocking || confidence < threshold
}

func applySoftGate(rec *types.DecisionRecord) {
	rec.HITLRecommended = true
	rec.HITLReasons = appendOnce(rec.HITLReasons, ReasonSoftGate)
}

func appendOnce(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
