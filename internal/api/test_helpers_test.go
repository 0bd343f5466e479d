package api

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/davidahmann/geogate/internal/cache"
	"github.com/davidahmann/geogate/internal/crypto"
	"github.com/davidahmann/geogate/internal/intake"
	"github.com/davidahmann/geogate/internal/ledger"
	"github.com/davidahmann/geogate/internal/metrics"
	"github.com/davidahmann/geogate/internal/policy"
	"github.com/davidahmann/geogate/pkg/types"
)

const blockingQuestion = "Which states require parental consent?"

var testActor = types.ReceiptActor{Kind: "service", Subject: "tester", Issuer: "geogate-test"}

type testEnv struct {
	service *ReviewService
	store   *ledger.InMemoryStore
	cache   *cache.MemoryCache
	metrics *metrics.Metrics
	reg     *prometheus.Registry
	signer  *crypto.Ed25519Signer
}

func newTestEnv(t testing.TB) testEnv {
	t.Helper()

	seed := make([]byte, ed25519.SeedSize)
	priv := ed25519.NewKeyFromSeed(seed)
	signer, err := crypto.NewEd25519Signer("test", priv)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	loaded, err := policy.LoadPolicy("../../policies/geogate.yaml")
	if err != nil {
		t.Fatalf("policy: %v", err)
	}

	reg := prometheus.NewRegistry()
	env := testEnv{
		store:   ledger.NewInMemoryStore(),
		cache:   cache.NewMemoryCache(),
		metrics: metrics.New(reg),
		reg:     reg,
		signer:  signer,
	}
	clock := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	env.service, err = NewReviewService(ServiceOptions{
		Policy:        loaded,
		Store:         env.store,
		Signer:        signer,
		Cache:         env.cache,
		CacheTTL:      time.Hour,
		NotifyChannel: "#geo-compliance",
		Metrics:       env.metrics,
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return env
}

func govFinding() types.Finding {
	return types.Finding{
		KeyPoint: "COPPA applies to under-13 users",
		Supports: types.SupportsApprove,
		Evidence: []types.Evidence{
			{Kind: types.EvidenceWeb, Ref: "https://www.ftc.gov/coppa", Snippet: "verifiable parental consent"},
			{Kind: types.EvidenceDoc, Ref: "doc:kids_policy#p3", Snippet: "age gate"},
		},
	}
}

func draft() *types.DecisionRecord {
	return &types.DecisionRecord{
		Decision:      types.VerdictAutoApprove,
		Confidence:    0.8,
		Justification: "COPPA consent requirements apply.",
		Conditions:    []string{},
		Citations:     []string{"https://www.ftc.gov/coppa"},
		HITLReasons:   []string{},
	}
}

// clearRequest decides without escalation.
func clearRequest() intake.DecideRequest {
	return intake.DecideRequest{
		SessionID:          "session-clear",
		FeatureName:        "Kids profile age gate",
		FeatureDescription: "Blocks signup for under-13 users without parental consent",
		Findings:           &types.AnalysisFindings{Findings: []types.Finding{govFinding()}},
		Draft:              draft(),
	}
}

// escalatingRequest carries a blocking policy question, so the soft gate fires.
func escalatingRequest() intake.DecideRequest {
	return intake.DecideRequest{
		SessionID:          "session-escalate",
		FeatureName:        "Curfew login blocker",
		FeatureDescription: "Restricts overnight logins for Utah minors",
		Findings: &types.AnalysisFindings{
			Findings: []types.Finding{govFinding()},
			OpenQuestions: []types.OpenQuestion{
				{Text: blockingQuestion, Category: types.CategoryPolicy, Blocking: true},
			},
		},
		Draft: draft(),
	}
}
