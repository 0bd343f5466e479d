package types

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestOpenQuestionAcceptsBareString(t *testing.T) {
	var af AnalysisFindings
	raw := `{"findings":[],"open_questions":["Is retention bounded?",{"text":"Which states?","category":"policy","blocking":true}]}`
	if err := json.Unmarshal([]byte(raw), &af); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(af.OpenQuestions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(af.OpenQuestions))
	}
	if q := af.OpenQuestions[0]; q.Text != "Is retention bounded?" || q.Category != CategoryEng || q.Blocking {
		t.Fatalf("unexpected legacy question: %+v", q)
	}
	if q := af.OpenQuestions[1]; q.Category != CategoryPolicy || !q.Blocking {
		t.Fatalf("unexpected structured question: %+v", q)
	}
}

func TestClosedEnumsRejectUnknownValues(t *testing.T) {
	cases := map[string]struct {
		raw string
		out any
	}{
		"supports":   {`{"key_point":"k","supports":"maybe","evidence":[]}`, &Finding{}},
		"kind":       {`{"kind":"pdf","ref":"r","snippet":"s"}`, &Evidence{}},
		"verdict":    {`{"decision":"deny"}`, &DecisionRecord{}},
		"resolution": {`{"resolution":"later"}`, &HITLResolution{}},
	}
	for name, tc := range cases {
		err := json.Unmarshal([]byte(tc.raw), tc.out)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected ValidationError, got %v", name, err)
		}
	}
}

func TestQuestionCategoryNormalized(t *testing.T) {
	cases := map[QuestionCategory]QuestionCategory{
		" Policy ": CategoryPolicy,
		"DATA":     CategoryData,
		"":         CategoryEng,
		"legal":    CategoryEng,
	}
	for in, want := range cases {
		if got := in.Normalized(); got != want {
			t.Fatalf("%q: expected %s, got %s", in, want, got)
		}
	}
}

func TestAllEvidenceAndValidate(t *testing.T) {
	af := &AnalysisFindings{Findings: []Finding{
		{Supports: SupportsApprove, Evidence: []Evidence{{Kind: EvidenceDoc, Ref: "a"}}},
		{Supports: SupportsUncertain, Evidence: []Evidence{{Kind: EvidenceWeb, Ref: "b"}}},
	}}
	if got := af.AllEvidence(); len(got) != 2 || got[1].Ref != "b" {
		t.Fatalf("unexpected evidence: %+v", got)
	}
	if err := af.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	af.Findings[0].Supports = "sideways"
	var verr *ValidationError
	if err := af.Validate(); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	var nilFindings *AnalysisFindings
	if nilFindings.AllEvidence() != nil || nilFindings.Validate() != nil {
		t.Fatalf("nil findings should be empty and valid")
	}
}

func TestDecisionRecordCloneDoesNotAlias(t *testing.T) {
	rec := DecisionRecord{Conditions: []string{"a"}, Citations: []string{"c"}, HITLReasons: []string{"r"}}
	cp := rec.Clone()
	cp.Conditions[0] = "changed"
	cp.Citations[0] = "changed"
	cp.HITLReasons[0] = "changed"
	if rec.Conditions[0] != "a" || rec.Citations[0] != "c" || rec.HITLReasons[0] != "r" {
		t.Fatalf("clone aliased the original: %+v", rec)
	}
}
