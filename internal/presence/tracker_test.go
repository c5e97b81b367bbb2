package presence

import (
	"context"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/nexa-labs/wavechat-backend/internal/models"
	"github.com/nexa-labs/wavechat-backend/internal/repositories"
	"github.com/nexa-labs/wavechat-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type presenceWrite struct {
	userID uint
	online bool
	at     time.Time
}

// fakeProfileStore is an in-memory ProfileRepository.
type fakeProfileStore struct {
	mu       sync.Mutex
	profiles map[uint]*models.Profile
	writes   []presenceWrite
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{profiles: map[uint]*models.Profile{}}
}

func (f *fakeProfileStore) EnsureProfile(_ context.Context, userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.profiles[userID]; !ok {
		f.profiles[userID] = &models.Profile{UserID: userID}
	}
	return nil
}

func (f *fakeProfileStore) GetByUserID(_ context.Context, userID uint) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	profile, ok := f.profiles[userID]
	if !ok {
		return nil, repositories.ErrProfileNotFound
	}
	copied := *profile
	return &copied, nil
}

func (f *fakeProfileStore) UpdatePresence(_ context.Context, userID uint, online bool, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	profile, ok := f.profiles[userID]
	if !ok {
		profile = &models.Profile{UserID: userID}
		f.profiles[userID] = profile
	}
	profile.IsOnline = online
	ts := at
	profile.LastSeen = &ts
	f.writes = append(f.writes, presenceWrite{userID: userID, online: online, at: at})
	return nil
}

func (f *fakeProfileStore) FindStaleOnline(_ context.Context, olderThan time.Time, limit int64) ([]models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stale []models.Profile
	for _, profile := range f.profiles {
		if profile.IsOnline && profile.LastSeen != nil && profile.LastSeen.Before(olderThan) {
			stale = append(stale, *profile)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].UserID < stale[j].UserID })
	if int64(len(stale)) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

func (f *fakeProfileStore) MarkOffline(_ context.Context, userIDs []uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var flipped int64
	for _, userID := range userIDs {
		if profile, ok := f.profiles[userID]; ok && profile.IsOnline {
			profile.IsOnline = false
			flipped++
		}
	}
	return flipped, nil
}

func (f *fakeProfileStore) CountActiveSince(_ context.Context, since time.Time, cap int64) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, profile := range f.profiles {
		if profile.LastSeen != nil && !profile.LastSeen.Before(since) {
			count++
			if cap > 0 && count == cap {
				return count, true, nil
			}
		}
	}
	return count, false, nil
}

func (f *fakeProfileStore) seed(userID uint, online bool, lastSeen time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ts := lastSeen
	f.profiles[userID] = &models.Profile{UserID: userID, IsOnline: online, LastSeen: &ts}
}

func newTestTracker(t *testing.T, store *fakeProfileStore, now time.Time) *Tracker {
	t.Helper()
	tracker, err := NewTracker(TrackerParams{
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Profiles: store,
	})
	require.NoError(t, err)
	tracker.now = func() time.Time { return now }
	return tracker
}

func TestHeartbeatFirstSignalWrites(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 500*1e6, time.UTC)
	store := newFakeProfileStore()
	tracker := newTestTracker(t, store, now)

	require.NoError(t, tracker.Heartbeat(context.Background(), 1, StatusOnline))
	require.Len(t, store.writes, 1)
	assert.True(t, store.writes[0].online)
	assert.Equal(t, now, store.writes[0].at)
}

func TestHeartbeatCoalescesWithinBatchInterval(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 500*1e6, time.UTC)
	store := newFakeProfileStore()
	tracker := newTestTracker(t, store, now)

	require.NoError(t, tracker.Heartbeat(context.Background(), 1, StatusOnline))
	require.NoError(t, tracker.Heartbeat(context.Background(), 1, StatusOnline))
	require.NoError(t, tracker.Heartbeat(context.Background(), 1, StatusAway))

	// Only the first signal reached storage
	assert.Len(t, store.writes, 1)
}

func TestHeartbeatWritesAgainAfterInterval(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeProfileStore()
	store.seed(1, true, start.Add(-3*BatchInterval))
	tracker := newTestTracker(t, store, start)

	require.NoError(t, tracker.Heartbeat(context.Background(), 1, StatusOnline))
	assert.Len(t, store.writes, 1)
}

func TestHeartbeatOfflineBypassesBatching(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 500*1e6, time.UTC)
	store := newFakeProfileStore()
	store.seed(1, true, now) // fresh write that would suppress online/away
	tracker := newTestTracker(t, store, now)

	require.NoError(t, tracker.Heartbeat(context.Background(), 1, StatusOffline))
	require.Len(t, store.writes, 1)
	assert.False(t, store.writes[0].online)
}

func TestHeartbeatAwayStoresOnlineFalse(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeProfileStore()
	tracker := newTestTracker(t, store, now)

	require.NoError(t, tracker.Heartbeat(context.Background(), 1, StatusAway))
	require.Len(t, store.writes, 1)
	assert.False(t, store.writes[0].online)
}

func TestGetPresenceUnknownUserIsOffline(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker := newTestTracker(t, newFakeProfileStore(), now)

	info, err := tracker.GetPresence(context.Background(), 99)
	require.NoError(t, err)
	assert.False(t, info.IsOnline)
	assert.Nil(t, info.LastSeen)
	assert.Equal(t, StatusOffline, info.PresenceStatus)
}

func TestGetPresenceClassifiesFromLastSeen(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeProfileStore()
	store.seed(1, true, now.Add(-2*time.Minute))
	tracker := newTestTracker(t, store, now)

	info, err := tracker.GetPresence(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, info.IsOnline)
	assert.Equal(t, StatusAway, info.PresenceStatus)
	require.NotNil(t, info.LastActive)
	assert.Equal(t, now.Add(-2*time.Minute), info.LastActive.UTC())
}

func TestIdleSweepFlipsStaleProfilesInChunks(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeProfileStore()
	for i := uint(1); i <= 120; i++ {
		store.seed(i, true, now.Add(-5*time.Minute))
	}
	store.seed(200, true, now.Add(-10*time.Second)) // still fresh
	tracker := newTestTracker(t, store, now)

	swept, err := tracker.IdleSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(120), swept)

	stale, err := store.FindStaleOnline(context.Background(), now.Add(-OnlineWindow), 500)
	require.NoError(t, err)
	assert.Empty(t, stale)

	// Fresh profile untouched, lastSeen preserved on swept ones
	fresh, err := store.GetByUserID(context.Background(), 200)
	require.NoError(t, err)
	assert.True(t, fresh.IsOnline)

	flipped, err := store.GetByUserID(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, flipped.IsOnline)
	require.NotNil(t, flipped.LastSeen)
	assert.Equal(t, now.Add(-5*time.Minute), flipped.LastSeen.UTC())
}
