package feature

import (
	"github.com/davidahmann/geogate/internal/crypto"
	"github.com/davidahmann/geogate/pkg/types"
)

const FeatureSchema = "geogate.feature.v0.1"

// BuildFeature builds a feature record and computes its feature_id. created_at
// stays out of the signing view so resubmitting the same analysis yields the
// same id.
func BuildFeature(sessionID, name, description string, findings types.AnalysisFindings, createdAt string) (types.FeatureRecord, error) {
	record := types.FeatureRecord{
		Schema:      FeatureSchema,
		CreatedAt:   createdAt,
		SessionID:   sessionID,
		Name:        name,
		Description: description,
		Findings:    findings,
	}

	signingView := map[string]any{
		"schema":      record.Schema,
		"session_id":  record.SessionID,
		"name":        record.Name,
		"description": record.Description,
		"findings":    FindingsView(record.Findings),
	}

	id, _, err := crypto.CanonicalDigest(signingView)
	if err != nil {
		return types.FeatureRecord{}, err
	}
	record.FeatureID = id
	return record, nil
}

// FindingsView renders findings as plain maps for canonicalization.
func FindingsView(af types.AnalysisFindings) map[string]any {
	findings := make([]any, 0, len(af.Findings))
	for _, f := range af.Findings {
		evidence := make([]any, 0, len(f.Evidence))
		for _, ev := range f.Evidence {
			evidence = append(evidence, map[string]any{
				"kind":    string(ev.Kind),
				"ref":     ev.Ref,
				"snippet": ev.Snippet,
			})
		}
		findings = append(findings, map[string]any{
			"key_point": f.KeyPoint,
			"supports":  string(f.Supports),
			"evidence":  evidence,
		})
	}

	questions := make([]any, 0, len(af.OpenQuestions))
	for _, q := range af.OpenQuestions {
		questions = append(questions, map[string]any{
			"text":     q.Text,
			"category": string(q.Category),
			"blocking": q.Blocking,
		})
	}

	return map[string]any{
		"findings":       findings,
		"open_questions": questions,
	}
}
