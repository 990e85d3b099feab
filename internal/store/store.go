// Package store keeps campaigns, discovered influencer batches and campaign
// analyses in memory.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"campaignhub/internal/enrichment"
	apperrors "campaignhub/internal/errors"
	id "campaignhub/internal/utils/id"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultBatchCapacity = 256

// Campaign is a locally stored campaign record.
type Campaign struct {
	ID             string `json:"-"`
	Name           string `json:"campaign_name"`
	Goal           string `json:"goal"`
	CreatedOn      string `json:"created_on"`
	TargetAudience string `json:"target_audience"`
	BrandName      string `json:"brand_name"`
	Niche          string `json:"niche"`
	BrandWebsite   string `json:"brand_website"`
	Platform       string `json:"platform"`
	Budget         any    `json:"budget"`

	createdAt time.Time
}

// Batch is one enriched discovery result.
type Batch struct {
	Key         string                        `json:"batch_key"`
	CampaignID  string                        `json:"campaign_id,omitempty"`
	Query       string                        `json:"user_query,omitempty"`
	Influencers []enrichment.InfluencerRecord `json:"influencers"`
	StoredAt    time.Time                     `json:"stored_at"`
}

// Snapshot is a point-in-time copy of everything stored.
type Snapshot struct {
	Campaigns   map[string]Campaign                      `json:"campaigns"`
	Influencers map[string][]enrichment.InfluencerRecord `json:"influencers"`
	Analysis    map[string]map[string]any                `json:"analysis"`
}

// Store is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	campaigns map[string]Campaign
	analyses  map[string]map[string]any
	batches   *lru.Cache[string, Batch]
	keys      *keyedMutex
	now       func() time.Time
}

// New creates a store that keeps at most batchCapacity influencer batches.
func New(batchCapacity int) (*Store, error) {
	if batchCapacity <= 0 {
		batchCapacity = defaultBatchCapacity
	}
	batches, err := lru.New[string, Batch](batchCapacity)
	if err != nil {
		return nil, fmt.Errorf("create batch cache: %w", err)
	}
	return &Store{
		campaigns: make(map[string]Campaign),
		analyses:  make(map[string]map[string]any),
		batches:   batches,
		keys:      newKeyedMutex(),
		now:       time.Now,
	}, nil
}

// CreateCampaign stores c under a new id and returns the stored copy.
func (s *Store) CreateCampaign(ctx context.Context, c Campaign) (Campaign, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = id.NewCampaignID()
	c.createdAt = now
	if c.CreatedOn == "" {
		c.CreatedOn = now.Format("2006-01-02T15:04:05.000000")
	}
	s.campaigns[c.ID] = c
	return c, nil
}

// Campaign returns the campaign with the given id.
func (s *Store) Campaign(ctx context.Context, campaignID string) (Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.campaigns[campaignID]
	if !ok {
		return Campaign{}, fmt.Errorf("campaign %q: %w", campaignID, apperrors.ErrNotFound)
	}
	return c, nil
}

// Campaigns lists stored campaigns, newest first.
func (s *Store) Campaigns(ctx context.Context) []Campaign {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].createdAt.Equal(out[j].createdAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].createdAt.After(out[j].createdAt)
	})
	return out
}

// PutBatch stores an influencer batch. A batch without a key is assigned a
// generated one. Storing again under the same key replaces the batch.
func (s *Store) PutBatch(ctx context.Context, b Batch) Batch {
	b.Key = strings.TrimSpace(b.Key)
	if b.Key == "" {
		b.Key = id.NewBatchID()
	}
	if b.StoredAt.IsZero() {
		b.StoredAt = s.now()
	}
	b.Influencers = append([]enrichment.InfluencerRecord(nil), b.Influencers...)
	s.batches.Add(b.Key, b)
	return b
}

// Batch returns the batch stored under key.
func (s *Store) Batch(ctx context.Context, key string) (Batch, error) {
	b, ok := s.batches.Get(key)
	if !ok {
		return Batch{}, fmt.Errorf("influencer batch %q: %w", key, apperrors.ErrNotFound)
	}
	return b, nil
}

// PutAnalysis records the latest analysis for a campaign.
func (s *Store) PutAnalysis(ctx context.Context, campaignID string, analysis map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses[campaignID] = analysis
}

// Analysis returns the stored analysis for a campaign.
func (s *Store) Analysis(ctx context.Context, campaignID string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.analyses[campaignID]
	if !ok {
		return nil, fmt.Errorf("analysis for campaign %q: %w", campaignID, apperrors.ErrNotFound)
	}
	return a, nil
}

// Lock serialises mutations scoped to key and returns the unlock function.
func (s *Store) Lock(key string) func() {
	return s.keys.lock(key)
}

// Snapshot copies the stored state.
func (s *Store) Snapshot(ctx context.Context) Snapshot {
	s.mu.RLock()
	snap := Snapshot{
		Campaigns:   make(map[string]Campaign, len(s.campaigns)),
		Influencers: make(map[string][]enrichment.InfluencerRecord),
		Analysis:    make(map[string]map[string]any, len(s.analyses)),
	}
	for k, v := range s.campaigns {
		snap.Campaigns[k] = v
	}
	for k, v := range s.analyses {
		snap.Analysis[k] = v
	}
	s.mu.RUnlock()

	for _, key := range s.batches.Keys() {
		if b, ok := s.batches.Peek(key); ok {
			snap.Influencers[key] = b.Influencers
		}
	}
	return snap
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			m.Unlock()
			k.mu.Lock()
			m.refs--
			if m.refs == 0 {
				delete(k.locks, key)
			}
			k.mu.Unlock()
		})
	}
}
