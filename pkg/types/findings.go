package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type EvidenceKind string

const (
	EvidenceDoc EvidenceKind = "doc"
	EvidenceWeb EvidenceKind = "web"
)

type Supports string

const (
	SupportsApprove   Supports = "approve"
	SupportsReject    Supports = "reject"
	SupportsUncertain Supports = "uncertain"
)

type QuestionCategory string

const (
	CategoryPolicy  QuestionCategory = "policy"
	CategoryData    QuestionCategory = "data"
	CategoryEng     QuestionCategory = "eng"
	CategoryProduct QuestionCategory = "product"
)

// ValidationError reports an upstream contract violation found while decoding.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.Field, e.Value)
}

// Evidence is one cited snippet. It is shared read-only between findings.
type Evidence struct {
	Kind    EvidenceKind `json:"kind"`
	Ref     string       `json:"ref"`
	Snippet string       `json:"snippet"`
}

type Finding struct {
	KeyPoint string     `json:"key_point"`
	Supports Supports   `json:"supports"`
	Evidence []Evidence `json:"evidence"`
}

type OpenQuestion struct {
	Text     string           `json:"text"`
	Category QuestionCategory `json:"category"`
	Blocking bool             `json:"blocking"`
}

// AnalysisFindings is the synthesizer output consumed by the review engine.
type AnalysisFindings struct {
	Findings      []Finding      `json:"findings"`
	OpenQuestions []OpenQuestion `json:"open_questions"`
}

func (k EvidenceKind) Valid() bool {
	return k == EvidenceDoc || k == EvidenceWeb
}

func (s Supports) Valid() bool {
	switch s {
	case SupportsApprove, SupportsReject, SupportsUncertain:
		return true
	default:
		return false
	}
}

func (c QuestionCategory) Known() bool {
	switch c {
	case CategoryPolicy, CategoryData, CategoryEng, CategoryProduct:
		return true
	default:
		return false
	}
}

// Normalized lowercases the category and maps unknown or empty values to eng.
func (c QuestionCategory) Normalized() QuestionCategory {
	n := QuestionCategory(strings.ToLower(strings.TrimSpace(string(c))))
	if !n.Known() {
		return CategoryEng
	}
	return n
}

func (k *EvidenceKind) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	kind := EvidenceKind(raw)
	if !kind.Valid() {
		return &ValidationError{Field: "evidence.kind", Value: raw}
	}
	*k = kind
	return nil
}

func (s *Supports) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	supports := Supports(raw)
	if !supports.Valid() {
		return &ValidationError{Field: "finding.supports", Value: raw}
	}
	*s = supports
	return nil
}

// UnmarshalJSON accepts the structured form and the legacy bare-string form.
// A bare string becomes a non-blocking eng question.
func (q *OpenQuestion) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*q = OpenQuestion{Text: text, Category: CategoryEng}
		return nil
	}

	type plain OpenQuestion
	var out plain
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return err
	}
	*q = OpenQuestion(out)
	return nil
}

// AllEvidence flattens evidence from every finding in encounter order.
func (af *AnalysisFindings) AllEvidence() []Evidence {
	if af == nil {
		return nil
	}
	out := []Evidence{}
	for _, f := range af.Findings {
		out = append(out, f.Evidence...)
	}
	return out
}

// Validate checks closed enumerations on values built in code rather than decoded.
func (af *AnalysisFindings) Validate() error {
	if af == nil {
		return nil
	}
	for i, f := range af.Findings {
		if !f.Supports.Valid() {
			return fmt.Errorf("findings[%d]: %w", i, &ValidationError{Field: "finding.supports", Value: string(f.Supports)})
		}
		for j, ev := range f.Evidence {
			if !ev.Kind.Valid() {
				return fmt.Errorf("findings[%d].evidence[%d]: %w", i, j, &ValidationError{Field: "evidence.kind", Value: string(ev.Kind)})
			}
		}
	}
	return nil
}
