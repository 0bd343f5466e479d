// Package review reconciles an untrusted draft verdict with deterministic
// evidence scoring and returns the authoritative DecisionRecord.
package review

import (
	"github.com/davidahmann/geogate/internal/policy"
	"github.com/davidahmann/geogate/internal/scoring"
)

// Config is threaded into every Decide call; the engine keeps no globals.
type Config struct {
	StrictHITL                  bool
	AllowConditionSubstitution  bool
	SoftGateConfidenceThreshold float64
	Thresholds                  policy.Thresholds
	Model                       scoring.Model
	MaxCitations                int
	MaxConditions               int
}

func ConfigFromPolicy(p policy.Policy) Config {
	return Config{
		StrictHITL:                  p.Gates.StrictHITL,
		AllowConditionSubstitution:  p.Gates.AllowConditionSubstitution,
		SoftGateConfidenceThreshold: p.Gates.SoftGateConfidenceThreshold,
		Thresholds:                  p.Thresholds,
		Model:                       p.ScoringModel(),
		MaxCitations:                p.Citations.Max,
		MaxConditions:               p.Conditions.Max,
	}
}

func DefaultConfig() Config {
	return ConfigFromPolicy(policy.Default())
}
