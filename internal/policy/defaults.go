package policy

import (
	"errors"
	"fmt"
	"sort"

	"github.com/davidahmann/geogate/internal/scoring"
	"github.com/davidahmann/geogate/pkg/types"
)

var ErrInvalidPolicy = errors.New("invalid policy")

// Default returns the built-in policy. Maps and slices are freshly allocated
// on every call so callers may mutate the result.
func Default() Policy {
	m := scoring.DefaultModel()
	categories := make(map[string]float64, len(m.Questions.Severity))
	for k, v := range m.Questions.Severity {
		categories[string(k)] = v
	}

	return Policy{
		PolicyID:      "geogate-default",
		PolicyVersion: "2025-09-01",
		Gates: Gates{
			StrictHITL:                  false,
			AllowConditionSubstitution:  true,
			SoftGateConfidenceThreshold: 0.6,
		},
		Thresholds: Thresholds{
			RequiresRegulation:    0.75,
			AutoApprove:           0.75,
			ApproveWithConditions: 0.45,
		},
		Trust: TrustConfig{
			Doc:                m.Tiers.Doc,
			Gov:                m.Tiers.Gov,
			Edu:                m.Tiers.Edu,
			News:               m.Tiers.News,
			Web:                m.Tiers.Web,
			NoEvidenceStrength: m.Corroboration.NoEvidence,
			CorroborationStep:  m.Corroboration.Step,
			CorroborationCap:   m.Corroboration.Cap,
			RegulatorHosts:     append([]string(nil), m.Tiers.RegulatorHosts...),
			NewsTokens:         append([]string(nil), m.Tiers.NewsTokens...),
		},
		Penalty: PenaltyConfig{
			Categories:              categories,
			DefaultCategorySeverity: m.Questions.DefaultSeverity,
			NonBlockingMultiplier:   m.Questions.NonBlockingMultiplier,
			Normalizer:              m.Questions.Normalizer,
			RejectNudgeFloor:        m.Questions.RejectNudgeFloor,
			RejectNudgeRate:         m.Questions.RejectNudgeRate,
		},
		Confidence: ConfidenceParam{Steepness: m.Steepness},
		Citations:  LimitConfig{Max: 8},
		Conditions: LimitConfig{Max: 6},
	}
}

// Validate rejects values the engine cannot reason about.
func (p Policy) Validate() error {
	unit := []struct {
		name  string
		value float64
	}{
		{"gates.soft_gate_confidence_threshold", p.Gates.SoftGateConfidenceThreshold},
		{"thresholds.requires_regulation", p.Thresholds.RequiresRegulation},
		{"thresholds.auto_approve", p.Thresholds.AutoApprove},
		{"thresholds.approve_with_conditions", p.Thresholds.ApproveWithConditions},
		{"trust.doc", p.Trust.Doc},
		{"trust.gov", p.Trust.Gov},
		{"trust.edu", p.Trust.Edu},
		{"trust.news", p.Trust.News},
		{"trust.web", p.Trust.Web},
		{"trust.no_evidence_strength", p.Trust.NoEvidenceStrength},
		{"trust.corroboration_step", p.Trust.CorroborationStep},
		{"trust.corroboration_cap", p.Trust.CorroborationCap},
		{"penalty.default_category_severity", p.Penalty.DefaultCategorySeverity},
		{"penalty.non_blocking_multiplier", p.Penalty.NonBlockingMultiplier},
		{"penalty.reject_nudge_floor", p.Penalty.RejectNudgeFloor},
		{"penalty.reject_nudge_rate", p.Penalty.RejectNudgeRate},
	}
	for _, k := range unit {
		if k.value < 0 || k.value > 1 {
			return fmt.Errorf("%w: %s must be within [0,1], got %v", ErrInvalidPolicy, k.name, k.value)
		}
	}

	cats := make([]string, 0, len(p.Penalty.Categories))
	for cat := range p.Penalty.Categories {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	for _, cat := range cats {
		if v := p.Penalty.Categories[cat]; v < 0 || v > 1 {
			return fmt.Errorf("%w: penalty.categories.%s must be within [0,1], got %v", ErrInvalidPolicy, cat, v)
		}
	}
	if p.Penalty.Normalizer <= 0 {
		return fmt.Errorf("%w: penalty.normalizer must be positive", ErrInvalidPolicy)
	}
	if p.Confidence.Steepness <= 0 {
		return fmt.Errorf("%w: confidence.steepness must be positive", ErrInvalidPolicy)
	}
	if p.Citations.Max <= 0 || p.Conditions.Max <= 0 {
		return fmt.Errorf("%w: citations.max and conditions.max must be positive", ErrInvalidPolicy)
	}
	return nil
}

// ScoringModel projects the policy onto the scoring package's knobs.
func (p Policy) ScoringModel() scoring.Model {
	severity := make(map[types.QuestionCategory]float64, len(p.Penalty.Categories))
	for k, v := range p.Penalty.Categories {
		severity[types.QuestionCategory(k)] = v
	}
	return scoring.Model{
		Tiers: scoring.TrustTiers{
			Doc:            p.Trust.Doc,
			Gov:            p.Trust.Gov,
			Edu:            p.Trust.Edu,
			News:           p.Trust.News,
			Web:            p.Trust.Web,
			RegulatorHosts: append([]string(nil), p.Trust.RegulatorHosts...),
			NewsTokens:     append([]string(nil), p.Trust.NewsTokens...),
		},
		Corroboration: scoring.StrengthParams{
			NoEvidence: p.Trust.NoEvidenceStrength,
			Step:       p.Trust.CorroborationStep,
			Cap:        p.Trust.CorroborationCap,
		},
		Questions: scoring.PenaltyParams{
			Severity:              severity,
			DefaultSeverity:       p.Penalty.DefaultCategorySeverity,
			NonBlockingMultiplier: p.Penalty.NonBlockingMultiplier,
			Normalizer:            p.Penalty.Normalizer,
			RejectNudgeFloor:      p.Penalty.RejectNudgeFloor,
			RejectNudgeRate:       p.Penalty.RejectNudgeRate,
		},
		Steepness: p.Confidence.Steepness,
	}
}
