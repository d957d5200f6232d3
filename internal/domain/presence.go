package domain

import "time"

// PresenceEntry is one reachable identity as seen by other users.
type PresenceEntry struct {
	UserID       UserID `json:"userId"`
	DisplayName  string `json:"displayName"`
	ConnectionID string `json:"connectionId"`
}

// PresenceChangeKind tells what happened to the online set.
type PresenceChangeKind int

const (
	PresenceJoined PresenceChangeKind = iota
	PresenceRefreshed
	PresenceLeft
	// PresenceConnectionClosed is a close of a connection that did not own any
	// entry (never joined, or superseded by a newer connection).
	PresenceConnectionClosed
)

func (k PresenceChangeKind) String() string {
	switch k {
	case PresenceJoined:
		return "joined"
	case PresenceRefreshed:
		return "refreshed"
	case PresenceLeft:
		return "left"
	case PresenceConnectionClosed:
		return "connection_closed"
	default:
		return "unknown"
	}
}

// PresenceChange describes a single mutation of the online set.
type PresenceChange struct {
	Kind         PresenceChangeKind
	Entry        PresenceEntry
	ConnectionID string
	At           time.Time
}
