package scoring

import (
	"math"

	"github.com/davidahmann/geogate/pkg/types"
)

// Strength is the mean trust of a finding's evidence plus a corroboration bonus
// for every citation after the first, capped at 1.
func (m Model) Strength(f types.Finding) float64 {
	if len(f.Evidence) == 0 {
		return m.Corroboration.NoEvidence
	}

	sum := 0.0
	for _, ev := range f.Evidence {
		sum += m.Trust(ev)
	}
	base := sum / float64(len(f.Evidence))
	bonus := math.Min(m.Corroboration.Cap, m.Corroboration.Step*float64(len(f.Evidence)-1))
	return math.Min(1.0, base+bonus)
}
