package review

import (
	"errors"
	"fmt"
	"strings"

	"github.com/davidahmann/geogate/pkg/types"
)

var ErrUnknownQuestion = errors.New("review: resolution names no open question")

// Resolved is the outcome of folding human resolutions into a findings set.
type Resolved struct {
	Findings   types.AnalysisFindings
	Conditions []string
}

// ApplyResolutions returns a new findings set with human answers folded in.
// approve and reject add a finding with that label; condition turns the
// question into a condition; drop removes it. Any matched question leaves
// open_questions. The input is never modified.
func ApplyResolutions(af types.AnalysisFindings, resolutions []types.HITLResolution) (Resolved, error) {
	out := Resolved{
		Findings: types.AnalysisFindings{
			Findings:      append([]types.Finding{}, af.Findings...),
			OpenQuestions: append([]types.OpenQuestion{}, af.OpenQuestions...),
		},
		Conditions: []string{},
	}

	for i, r := range resolutions {
		if !r.Resolution.Valid() {
			return Resolved{}, fmt.Errorf("resolutions[%d]: %w", i, &types.ValidationError{Field: "resolution", Value: string(r.Resolution)})
		}

		idx := findQuestion(out.Findings.OpenQuestions, r.QuestionText)
		var q types.OpenQuestion
		if idx >= 0 {
			q = out.Findings.OpenQuestions[idx]
			out.Findings.OpenQuestions = removeQuestion(out.Findings.OpenQuestions, idx)
		}

		switch r.Resolution {
		case types.ResolutionApprove, types.ResolutionReject:
			out.Findings.Findings = append(out.Findings.Findings, types.Finding{
				KeyPoint: humanKeyPoint(r, q),
				Supports: types.Supports(r.Resolution),
				Evidence: []types.Evidence{},
			})
		case types.ResolutionCondition:
			if idx < 0 {
				return Resolved{}, fmt.Errorf("resolutions[%d] %q: %w", i, r.QuestionText, ErrUnknownQuestion)
			}
			if note := strings.TrimSpace(r.Note); note != "" {
				out.Conditions = appendOnce(out.Conditions, note)
			} else {
				out.Conditions, _ = mergeConditions(out.Conditions, conditionsFor(q))
			}
		case types.ResolutionDrop:
			if idx < 0 {
				return Resolved{}, fmt.Errorf("resolutions[%d] %q: %w", i, r.QuestionText, ErrUnknownQuestion)
			}
		}
	}
	return out, nil
}

func findQuestion(qs []types.OpenQuestion, text string) int {
	want := strings.TrimSpace(text)
	if want == "" {
		return -1
	}
	for i, q := range qs {
		if strings.EqualFold(strings.TrimSpace(q.Text), want) {
			return i
		}
	}
	return -1
}

func removeQuestion(qs []types.OpenQuestion, idx int) []types.OpenQuestion {
	out := make([]types.OpenQuestion, 0, len(qs)-1)
	out = append(out, qs[:idx]...)
	return append(out, qs[idx+1:]...)
}

func humanKeyPoint(r types.HITLResolution, q types.OpenQuestion) string {
	if note := strings.TrimSpace(r.Note); note != "" {
		return "Human review: " + note
	}
	if q.Text != "" {
		return "Human review resolved: " + q.Text
	}
	return "Human review: " + string(r.Resolution)
}
