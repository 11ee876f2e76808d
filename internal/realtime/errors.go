package realtime

import "errors"

var (
	ErrConnectionNotFound     = errors.New("connection not found")
	ErrConnectionClosed       = errors.New("connection closed")
	ErrSendBufferFull         = errors.New("send buffer full")
	ErrInvalidRoom            = errors.New("invalid room")
	ErrTooManyMalformedFrames = errors.New("too many malformed frames")

	// ErrRegistryInvariant means the connection and room indices disagree.
	// It is raised as a panic: delivering to the wrong audience is worse than crashing.
	ErrRegistryInvariant = errors.New("registry invariant violated")
)
