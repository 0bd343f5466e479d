// Package scoring turns findings and open questions into bounded approve/reject
// scores, a blocking penalty and an algorithmic confidence. Every function is
// pure: inputs are read, never modified.
package scoring

import (
	"math"

	"github.com/davidahmann/geogate/pkg/types"
)

type TrustTiers struct {
	Doc            float64
	Gov            float64
	Edu            float64
	News           float64
	Web            float64
	RegulatorHosts []string
	NewsTokens     []string
}

type StrengthParams struct {
	NoEvidence float64
	Step       float64
	Cap        float64
}

type PenaltyParams struct {
	Severity              map[types.QuestionCategory]float64
	DefaultSeverity       float64
	NonBlockingMultiplier float64
	Normalizer            float64
	RejectNudgeFloor      float64
	RejectNudgeRate       float64
}

// Model carries every numeric knob used while scoring.
type Model struct {
	Tiers         TrustTiers
	Corroboration StrengthParams
	Questions     PenaltyParams
	Steepness     float64
}

func DefaultModel() Model {
	return Model{
		Tiers: TrustTiers{
			Doc:            0.70,
			Gov:            0.85,
			Edu:            0.65,
			News:           0.55,
			Web:            0.45,
			RegulatorHosts: []string{"ftc.gov", "europa.eu", "oag.utah.gov"},
			NewsTokens:     []string{"reuters", "bloomberg", "apnews", "nytimes"},
		},
		Corroboration: StrengthParams{
			NoEvidence: 0.35,
			Step:       0.10,
			Cap:        0.30,
		},
		Questions: PenaltyParams{
			Severity: map[types.QuestionCategory]float64{
				types.CategoryPolicy:  1.00,
				types.CategoryData:    0.80,
				types.CategoryEng:     0.60,
				types.CategoryProduct: 0.50,
			},
			DefaultSeverity:       0.60,
			NonBlockingMultiplier: 0.3,
			Normalizer:            2.5,
			RejectNudgeFloor:      0.4,
			RejectNudgeRate:       0.5,
		},
		Steepness: 3.0,
	}
}

// clamp01 bounds v to [0,1]; NaN collapses to 0.
func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
