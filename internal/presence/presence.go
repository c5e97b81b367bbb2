package presence

import "time"

// Status is a user's derived liveness classification.
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusOffline Status = "offline"
)

const (
	// BatchInterval coalesces rapid heartbeats into one write per window.
	BatchInterval = time.Second
	// OnlineWindow is how recent a heartbeat must be to count as online.
	OnlineWindow = 60 * time.Second
	// AwayWindow is the upper bound on the away classification.
	AwayWindow = 600 * time.Second
)

// Classify derives the display status from the last heartbeat time. The
// stored isOnline flag only carries the two-state heartbeat signal; any
// surface showing a status uses this derivation instead.
func Classify(lastSeen *time.Time, now time.Time) Status {
	if lastSeen == nil {
		return StatusOffline
	}
	elapsed := now.Sub(*lastSeen)
	switch {
	case elapsed >= 0 && elapsed < OnlineWindow:
		return StatusOnline
	case elapsed >= OnlineWindow && elapsed < AwayWindow:
		return StatusAway
	default:
		return StatusOffline
	}
}

// ParseStatus converts a request string into a Status, defaulting to offline.
func ParseStatus(value string) Status {
	switch Status(value) {
	case StatusOnline, StatusAway, StatusOffline:
		return Status(value)
	}
	return StatusOffline
}
