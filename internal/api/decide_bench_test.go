package api

import (
	"context"
	"fmt"
	"testing"
)

func BenchmarkDecide(b *testing.B) {
	env := newTestEnv(b)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := escalatingRequest()
		req.SessionID = fmt.Sprintf("bench-%d", i)
		if _, err := env.service.Decide(ctx, testActor, req); err != nil {
			b.Fatalf("decide: %v", err)
		}
	}
}
