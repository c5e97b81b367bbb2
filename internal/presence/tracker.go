package presence

import (
	"context"
	"errors"
	"time"

	"github.com/nexa-labs/wavechat-backend/internal/repositories"
	"github.com/nexa-labs/wavechat-backend/pkg/logger"
)

const sweepChunkSize = 50

// TrackerParams configure the presence tracker.
type TrackerParams struct {
	Logger   *logger.Logger
	Profiles repositories.ProfileRepository
}

// Tracker maintains the best-effort liveness signal per user. Heartbeat
// writes are coalesced to one per batch interval; concurrent heartbeats
// from the same user at worst cost a redundant write, relying only on the
// document store's single-document atomicity.
type Tracker struct {
	logg     *logger.Logger
	profiles repositories.ProfileRepository
	now      func() time.Time
}

// NewTracker builds a presence tracker.
func NewTracker(params TrackerParams) (*Tracker, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Profiles == nil {
		return nil, errors.New("profile repository is required")
	}
	return &Tracker{
		logg:     params.Logger,
		profiles: params.Profiles,
		now:      time.Now,
	}, nil
}

// Heartbeat records a liveness signal. An explicit offline always writes;
// online/away signals are suppressed when the previous write already falls
// within the current batch interval, preventing write amplification from
// frequent client pings.
func (t *Tracker) Heartbeat(ctx context.Context, userID uint, status Status) error {
	now := t.now()

	if status == StatusOffline {
		return t.profiles.UpdatePresence(ctx, userID, false, now)
	}

	profile, err := t.profiles.GetByUserID(ctx, userID)
	if err != nil && !errors.Is(err, repositories.ErrProfileNotFound) {
		return err
	}

	batched := now.Truncate(BatchInterval)
	if profile != nil && profile.LastSeen != nil && !profile.LastSeen.Before(batched.Add(-BatchInterval)) {
		return nil
	}

	return t.profiles.UpdatePresence(ctx, userID, status == StatusOnline, now)
}

// Info is the presence view returned to the calling user.
type Info struct {
	IsOnline       bool       `json:"is_online"`
	LastSeen       *time.Time `json:"last_seen,omitempty"`
	PresenceStatus Status     `json:"presence_status"`
	LastActive     *time.Time `json:"last_active,omitempty"`
}

// GetPresence returns the stored flag plus the derived classification.
func (t *Tracker) GetPresence(ctx context.Context, userID uint) (*Info, error) {
	profile, err := t.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrProfileNotFound) {
			return &Info{IsOnline: false, PresenceStatus: StatusOffline}, nil
		}
		return nil, err
	}
	return &Info{
		IsOnline:       profile.IsOnline,
		LastSeen:       profile.LastSeen,
		PresenceStatus: Classify(profile.LastSeen, t.now()),
		LastActive:     profile.LastSeen,
	}, nil
}

// IdleSweep reconciles stale online flags left behind by clients that
// disconnected without an explicit offline signal. Profiles are flipped in
// chunks; lastSeen is preserved for display.
func (t *Tracker) IdleSweep(ctx context.Context) (int64, error) {
	cutoff := t.now().Add(-OnlineWindow)
	var swept int64
	for {
		profiles, err := t.profiles.FindStaleOnline(ctx, cutoff, sweepChunkSize)
		if err != nil {
			return swept, err
		}
		if len(profiles) == 0 {
			break
		}

		userIDs := make([]uint, 0, len(profiles))
		for _, profile := range profiles {
			userIDs = append(userIDs, profile.UserID)
		}
		updated, err := t.profiles.MarkOffline(ctx, userIDs)
		if err != nil {
			return swept, err
		}
		swept += updated

		if len(profiles) < sweepChunkSize {
			break
		}
	}
	if swept > 0 {
		t.logg.Info(t.logg.WithField(ctx, "swept", swept), "idle sweep flipped stale online profiles")
	}
	return swept, nil
}
