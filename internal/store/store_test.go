package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"campaignhub/internal/enrichment"
	apperrors "campaignhub/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, capacity int) *Store {
	t.Helper()
	s, err := New(capacity)
	require.NoError(t, err)
	return s
}

func TestCampaignLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 0)

	created, err := s.CreateCampaign(ctx, Campaign{Name: "Launch", Goal: "awareness", Budget: float64(5000)})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.NotEmpty(t, created.CreatedOn)

	got, err := s.Campaign(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Launch", got.Name)

	_, err = s.Campaign(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCampaignsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 0)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first, _ := s.CreateCampaign(ctx, Campaign{Name: "first"})
	second, _ := s.CreateCampaign(ctx, Campaign{Name: "second"})

	list := s.Campaigns(ctx)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestCampaignJSONShape(t *testing.T) {
	c := Campaign{ID: "c-1", Name: "Launch", Platform: "instagram", Budget: "10k"}
	raw, err := json.Marshal(c)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "Launch", decoded["campaign_name"])
	assert.Equal(t, "10k", decoded["budget"])
	assert.NotContains(t, decoded, "ID")
	for _, key := range []string{"goal", "created_on", "target_audience", "brand_name", "niche", "brand_website", "platform"} {
		assert.Contains(t, decoded, key)
	}
}

func TestBatchesKeyedAndBounded(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 2)

	a := s.PutBatch(ctx, Batch{Key: "camp-a", Influencers: []enrichment.InfluencerRecord{{ID: "insta_a"}}})
	assert.Equal(t, "camp-a", a.Key)
	anon := s.PutBatch(ctx, Batch{Influencers: []enrichment.InfluencerRecord{{ID: "insta_b"}}})
	assert.Contains(t, anon.Key, "batch-")

	got, err := s.Batch(ctx, "camp-a")
	require.NoError(t, err)
	assert.Equal(t, "insta_a", got.Influencers[0].ID)

	// camp-a was just read, so the anonymous batch is evicted first.
	s.PutBatch(ctx, Batch{Key: "camp-c"})
	_, err = s.Batch(ctx, anon.Key)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = s.Batch(ctx, "camp-a")
	assert.NoError(t, err)

	s.PutBatch(ctx, Batch{Key: "camp-a", Influencers: []enrichment.InfluencerRecord{{ID: "insta_z"}}})
	got, err = s.Batch(ctx, "camp-a")
	require.NoError(t, err)
	require.Len(t, got.Influencers, 1)
	assert.Equal(t, "insta_z", got.Influencers[0].ID)
}

func TestPutBatchCopiesRecords(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 0)
	records := []enrichment.InfluencerRecord{{ID: "insta_a"}}

	s.PutBatch(ctx, Batch{Key: "k", Influencers: records})
	records[0].ID = "mutated"

	got, err := s.Batch(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "insta_a", got.Influencers[0].ID)
}

func TestAnalysisAndSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 0)
	c, _ := s.CreateCampaign(ctx, Campaign{Name: "Launch"})

	_, err := s.Analysis(ctx, c.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	s.PutAnalysis(ctx, c.ID, map[string]any{"roi": 1.4})
	s.PutBatch(ctx, Batch{Key: c.ID, Influencers: []enrichment.InfluencerRecord{{ID: "insta_a"}}})

	got, err := s.Analysis(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.4, got["roi"])

	snap := s.Snapshot(ctx)
	assert.Contains(t, snap.Campaigns, c.ID)
	assert.Len(t, snap.Influencers[c.ID], 1)
	assert.Equal(t, 1.4, snap.Analysis[c.ID]["roi"])
}

func TestLockSerialisesSameKey(t *testing.T) {
	s := newStore(t, 0)
	var (
		wg      sync.WaitGroup
		active  int
		maxSeen int
		mu      sync.Mutex
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.Lock("campaign-1")
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)

	s.keys.mu.Lock()
	assert.Empty(t, s.keys.locks)
	s.keys.mu.Unlock()
}

func TestLockDifferentKeysIndependent(t *testing.T) {
	s := newStore(t, 0)
	unlockA := s.Lock("a")
	done := make(chan struct{})
	go func() {
		unlock := s.Lock("b")
		unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
	unlockA()
	unlockA()
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 16)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, _ := s.CreateCampaign(ctx, Campaign{Name: fmt.Sprintf("c%d", i)})
			s.PutBatch(ctx, Batch{Key: c.ID})
			s.PutAnalysis(ctx, c.ID, map[string]any{"i": i})
			_ = s.Snapshot(ctx)
		}(i)
	}
	wg.Wait()
	assert.Len(t, s.Campaigns(ctx), 20)
}
