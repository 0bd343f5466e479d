package api

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/davidahmann/geogate/internal/cache"
)

// idemStore keeps serialized decide responses keyed by request digest.
type idemStore struct {
	cache cache.Cache
	ttl   time.Duration
}

func (s idemStore) Get(ctx context.Context, key string) (DecideResponse, bool, error) {
	if s.cache == nil {
		return DecideResponse{}, false, nil
	}
	raw, err := s.cache.Get(ctx, key)
	if errors.Is(err, cache.ErrMiss) {
		return DecideResponse{}, false, nil
	}
	if err != nil {
		return DecideResponse{}, false, err
	}
	var resp DecideResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return DecideResponse{}, false, err
	}
	return resp, true, nil
}

// Put stores resp unless another writer got there first, in which case the
// earlier response is returned.
func (s idemStore) Put(ctx context.Context, key string, resp DecideResponse) (DecideResponse, error) {
	if s.cache == nil {
		return resp, nil
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return resp, err
	}
	stored, err := s.cache.SetNX(ctx, key, string(raw), s.ttl)
	if err != nil || stored {
		return resp, err
	}
	if prior, ok, err := s.Get(ctx, key); err == nil && ok {
		return prior, nil
	}
	return resp, nil
}
