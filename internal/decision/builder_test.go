package decision

import (
	"testing"

	"github.com/davidahmann/geogate/pkg/types"
)

func sampleRecord() types.DecisionRecord {
	return types.DecisionRecord{
		Decision:      types.VerdictApproveWithConditions,
		Confidence:    0.7125,
		Justification: "Utah curfew law applies to minors.",
		Conditions:    []string{"Validate geo-targeting logic per jurisdiction prior to rollout."},
		Citations:     []string{"https://oag.utah.gov/sm"},
	}
}

func TestBuildDecisionDeterministicID(t *testing.T) {
	policy := types.DecisionPolicy{
		PolicyID:      "geogate-default",
		PolicyVersion: "2025-09-01",
		PolicyHash:    "sha256:policy",
	}

	recA, err := BuildDecision("sha256:feat", "sess", policy, sampleRecord(), types.DecisionTrace{ApproveScore: 0.7}, "", "2025-09-01T10:00:00Z")
	if err != nil {
		t.Fatalf("build decision: %v", err)
	}
	recB, err := BuildDecision("sha256:feat", "sess", policy, sampleRecord(), types.DecisionTrace{ApproveScore: 0.1}, "", "2025-09-01T11:00:00Z")
	if err != nil {
		t.Fatalf("build decision: %v", err)
	}

	if recA.DecisionID == "" {
		t.Fatalf("decision id missing")
	}
	if recA.DecisionID != recB.DecisionID {
		t.Fatalf("decision id not deterministic")
	}

	superseding, err := BuildDecision("sha256:feat", "sess", policy, sampleRecord(), types.DecisionTrace{}, recA.DecisionID, "2025-09-01T10:00:00Z")
	if err != nil {
		t.Fatalf("build decision: %v", err)
	}
	if superseding.DecisionID == recA.DecisionID {
		t.Fatalf("superseding decision must get a new id")
	}
	if superseding.Supersedes != recA.DecisionID {
		t.Fatalf("supersedes not recorded")
	}

	changed := sampleRecord()
	changed.Confidence = 0.714
	recC, err := BuildDecision("sha256:feat", "sess", policy, changed, types.DecisionTrace{}, "", "2025-09-01T10:00:00Z")
	if err != nil {
		t.Fatalf("build decision: %v", err)
	}
	if recC.DecisionID == recA.DecisionID {
		t.Fatalf("decision id should change with confidence")
	}
}

func TestBuildDecisionCopiesRecord(t *testing.T) {
	rec := sampleRecord()
	env, err := BuildDecision("sha256:feat", "sess", types.DecisionPolicy{}, rec, types.DecisionTrace{}, "", "now")
	if err != nil {
		t.Fatalf("build decision: %v", err)
	}
	rec.Conditions[0] = "mutated"
	if env.Record.Conditions[0] == "mutated" {
		t.Fatalf("envelope must not alias the record")
	}
	if env.Record.HITLReasons == nil {
		t.Fatalf("expected empty, non-nil hitl_reasons")
	}
}

func TestMilli(t *testing.T) {
	cases := map[float64]int64{0: 0, 0.5: 500, 0.7126: 713, 1: 1000, 0.0004: 0}
	for in, want := range cases {
		if got := Milli(in); got != want {
			t.Fatalf("Milli(%v) = %d, want %d", in, got, want)
		}
	}
}
