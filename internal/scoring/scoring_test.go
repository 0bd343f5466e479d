package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidahmann/geogate/pkg/types"
)

func web(ref string) types.Evidence {
	return types.Evidence{Kind: types.EvidenceWeb, Ref: ref, Snippet: "s"}
}

func doc(ref string) types.Evidence {
	return types.Evidence{Kind: types.EvidenceDoc, Ref: ref, Snippet: "s"}
}

func TestTrustTiers(t *testing.T) {
	m := DefaultModel()

	tests := []struct {
		name string
		ev   types.Evidence
		want float64
	}{
		{"internal doc", doc("doc:utah_social_media_act#p12"), 0.70},
		{"gov suffix", web("https://www.ftc.gov/business-guidance"), 0.85},
		{"regulator host", web("https://eur-lex.europa.eu/eli/reg/2022/2065"), 0.85},
		{"utah oag", web("https://oag.utah.gov/"), 0.85},
		{"edu", web("https://cyber.harvard.edu/paper"), 0.65},
		{"news", web("https://www.reuters.com/technology/"), 0.55},
		{"generic", web("https://blog.example.com/post"), 0.45},
		{"uppercase host", web("HTTPS://WWW.FTC.GOV/x"), 0.85},
		{"no scheme", web("ftc.gov/child-privacy"), 0.45},
		{"malformed", web("::not a url"), 0.45},
		{"empty", web(""), 0.45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, m.Trust(tt.ev), 1e-9)
		})
	}
}

func TestStrength(t *testing.T) {
	m := DefaultModel()

	assert.InDelta(t, 0.35, m.Strength(types.Finding{Supports: types.SupportsApprove}), 1e-9)
	assert.InDelta(t, 0.85, m.Strength(types.Finding{Evidence: []types.Evidence{web("https://ftc.gov/a")}}), 1e-9)
	assert.InDelta(t, 0.95, m.Strength(types.Finding{Evidence: []types.Evidence{web("https://ftc.gov/a"), web("https://ftc.gov/b")}}), 1e-9)

	many := []types.Evidence{web("https://a.com"), web("https://b.com"), web("https://c.com"), web("https://d.com"), web("https://e.com")}
	assert.InDelta(t, 0.75, m.Strength(types.Finding{Evidence: many}), 1e-9, "corroboration bonus is capped")

	gov := []types.Evidence{web("https://a.gov"), web("https://b.gov"), web("https://c.gov"), web("https://d.gov")}
	assert.InDelta(t, 1.0, m.Strength(types.Finding{Evidence: gov}), 1e-9, "strength is capped at 1")
}

func TestAggregateSkipsUncertain(t *testing.T) {
	m := DefaultModel()
	findings := []types.Finding{
		{Supports: types.SupportsApprove, Evidence: []types.Evidence{doc("doc:a")}},
		{Supports: types.SupportsUncertain, Evidence: []types.Evidence{web("https://ftc.gov/x")}},
		{Supports: types.SupportsReject, Evidence: []types.Evidence{web("https://example.com")}},
	}

	got := m.Aggregate(findings)
	assert.InDelta(t, 0.70, got.Approve, 1e-9)
	assert.InDelta(t, 0.45, got.Reject, 1e-9)
	require.Len(t, got.Used, 2)
	assert.Equal(t, "doc:a", got.Used[0].Ref)
	assert.Equal(t, "https://example.com", got.Used[1].Ref)
}

func TestAggregateSaturates(t *testing.T) {
	m := DefaultModel()
	findings := []types.Finding{
		{Supports: types.SupportsApprove, Evidence: []types.Evidence{web("https://ftc.gov/a")}},
		{Supports: types.SupportsApprove, Evidence: []types.Evidence{web("https://ftc.gov/b")}},
		{Supports: types.SupportsApprove},
	}
	got := m.Aggregate(findings)
	assert.Equal(t, 1.0, got.Approve)
	assert.Equal(t, 0.0, got.Reject)
}

func TestAggregateEmpty(t *testing.T) {
	got := DefaultModel().Aggregate(nil)
	assert.Zero(t, got.Approve)
	assert.Zero(t, got.Reject)
	assert.NotNil(t, got.Used)
	assert.Empty(t, got.Used)
}

func TestPenalty(t *testing.T) {
	m := DefaultModel()

	p, blocking := m.Penalty(nil)
	assert.Zero(t, p)
	assert.False(t, blocking)

	p, blocking = m.Penalty([]types.OpenQuestion{{Text: "which states?", Category: types.CategoryPolicy, Blocking: true}})
	assert.InDelta(t, 0.4, p, 1e-9)
	assert.True(t, blocking)

	p, blocking = m.Penalty([]types.OpenQuestion{{Text: "log format", Category: types.CategoryEng}})
	assert.InDelta(t, 0.072, p, 1e-9)
	assert.False(t, blocking)

	p, _ = m.Penalty([]types.OpenQuestion{{Text: "?", Category: "legal", Blocking: true}})
	assert.InDelta(t, 0.24, p, 1e-9, "unknown category uses the default severity")

	p, _ = m.Penalty([]types.OpenQuestion{{Text: "?", Blocking: true}})
	assert.InDelta(t, 0.24, p, 1e-9, "empty category scores as eng")

	p, _ = m.Penalty([]types.OpenQuestion{{Text: "?", Category: "POLICY", Blocking: true}})
	assert.InDelta(t, 0.4, p, 1e-9, "category matching is case-insensitive")

	qs := []types.OpenQuestion{
		{Category: types.CategoryPolicy, Blocking: true},
		{Category: types.CategoryPolicy, Blocking: true},
		{Category: types.CategoryData, Blocking: true},
	}
	p, _ = m.Penalty(qs)
	assert.Equal(t, 1.0, p)
}

func TestApplyPenalty(t *testing.T) {
	m := DefaultModel()

	a, r := m.ApplyPenalty(0.7, 0.2, 0.4)
	assert.InDelta(t, 0.42, a, 1e-9)
	assert.InDelta(t, 0.2, r, 1e-9, "no reject nudge at or below the floor")

	a, r = m.ApplyPenalty(0.9, 0.3, 0.8)
	assert.InDelta(t, 0.18, a, 1e-9)
	assert.InDelta(t, 0.5, r, 1e-9)

	_, r = m.ApplyPenalty(0, 0.95, 1.0)
	assert.Equal(t, 1.0, r)
}

func TestBlend(t *testing.T) {
	m := DefaultModel()

	final, algo := m.Blend(0, 0, 0.5)
	assert.InDelta(t, 0.5, algo, 1e-12)
	assert.Equal(t, 0.5, final)

	final, algo = m.Blend(1, 0, 0.9)
	assert.InDelta(t, 1/(1+math.Exp(-3)), algo, 1e-12)
	assert.Equal(t, Round3(0.45+0.5*algo), final)

	final, _ = m.Blend(0, 1, 7.5)
	assert.GreaterOrEqual(t, final, 0.0)
	assert.LessOrEqual(t, final, 1.0)
}

func TestBoundedness(t *testing.T) {
	m := DefaultModel()
	refs := []string{"https://ftc.gov/a", "doc:x", "https://example.com", "https://mit.edu", "%%%"}

	for n := 0; n < 12; n++ {
		findings := make([]types.Finding, 0, n)
		for i := 0; i < n; i++ {
			sup := []types.Supports{types.SupportsApprove, types.SupportsReject, types.SupportsUncertain}[i%3]
			ev := []types.Evidence{web(refs[i%len(refs)])}
			if i%2 == 0 {
				ev = append(ev, doc("doc:extra"))
			}
			findings = append(findings, types.Finding{Supports: sup, Evidence: ev})
		}
		qs := make([]types.OpenQuestion, n)
		for i := range qs {
			qs[i] = types.OpenQuestion{Category: types.CategoryPolicy, Blocking: i%2 == 0}
		}

		s := m.Aggregate(findings)
		p, _ := m.Penalty(qs)
		a, r := m.ApplyPenalty(s.Approve, s.Reject, p)
		final, _ := m.Blend(a, r, 1)

		for _, v := range []float64{s.Approve, s.Reject, p, a, r, final} {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}
