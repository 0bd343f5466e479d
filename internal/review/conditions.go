package review

import (
	"strings"

	"github.com/davidahmann/geogate/pkg/types"
)

const (
	ConditionParentalConsent   = "Maintain verifiable parental consent and revocation flow for minors."
	ConditionAgeVerification   = "Implement robust age verification (primary + fallback checks)."
	ConditionDataRetention     = "Enforce data minimization and time-bound retention for minors' data."
	ConditionLeastPrivilege    = "Restrict access via RBAC and least-privilege for child data paths."
	ConditionAuditLogging      = "Enable audit logging for enforcement decisions and data access."
	ConditionGeoTargeting      = "Validate geo-targeting logic per jurisdiction prior to rollout."
	ConditionFallbackSafeguard = "Operate safeguards documented in analysis findings."
)

type conditionRule struct {
	condition string
	tokens    []string
	category  types.QuestionCategory
}

var conditionRules = []conditionRule{
	{ConditionParentalConsent, []string{"consent"}, types.CategoryPolicy},
	{ConditionAgeVerification, []string{"age"}, ""},
	{ConditionDataRetention, []string{"retention", "minimi"}, ""},
	{ConditionLeastPrivilege, []string{"access", "rbac"}, types.CategoryData},
	{ConditionAuditLogging, []string{"audit", "trace"}, types.CategoryEng},
	{ConditionGeoTargeting, []string{"geo", "jurisdiction"}, types.CategoryProduct},
}

// SynthesizeConditions maps open questions onto the standard condition
// catalogue. Matching is substring based, so "age" also fires on words like
// "usage"; that looseness is accepted.
func SynthesizeConditions(questions []types.OpenQuestion, limit int) []string {
	out := []string{}
	seen := map[string]struct{}{}
	for _, q := range questions {
		for _, c := range conditionsFor(q) {
			if limit > 0 && len(out) >= limit {
				return out
			}
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

func conditionsFor(q types.OpenQuestion) []string {
	text := strings.ToLower(q.Text)
	cat := types.QuestionCategory(strings.ToLower(strings.TrimSpace(string(q.Category))))
	if cat == "" {
		cat = types.CategoryEng
	}

	var out []string
	for _, rule := range conditionRules {
		if (rule.category != "" && cat == rule.category) || containsAnyToken(text, rule.tokens) {
			out = append(out, rule.condition)
		}
	}
	return out
}

func containsAnyToken(text string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

// mergeConditions appends additions not already present, keeping order.
func mergeConditions(existing, additions []string) ([]string, int) {
	have := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		have[c] = struct{}{}
	}
	added := 0
	for _, c := range additions {
		if _, ok := have[c]; ok {
			continue
		}
		have[c] = struct{}{}
		existing = append(existing, c)
		added++
	}
	return existing, added
}
