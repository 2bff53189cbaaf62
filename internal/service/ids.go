package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidID indicates a pattern or prediction ID that is not a UUID
	ErrInvalidID = errors.New("invalid id format")
	// ErrNotUUIDv7 indicates an ID that was not minted by this service
	ErrNotUUIDv7 = errors.New("id must be a version 7 UUID")
	// ErrFutureTimestamp indicates a sample or ID dated too far ahead of the server clock
	ErrFutureTimestamp = errors.New("timestamp is too far in the future")
)

// MaxClockSkew is how far ahead of the server clock a sample timestamp or
// UUIDv7 may be
const MaxClockSkew = time.Minute

// ValidateID checks that id is a UUIDv7 whose embedded time is not ahead of
// now by more than MaxClockSkew. Pattern and prediction IDs are always v7.
func ValidateID(id string, now time.Time) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	if parsed.Version() != 7 {
		return fmt.Errorf("%w: got version %d", ErrNotUUIDv7, parsed.Version())
	}
	if ts := IDTimestamp(parsed); ts.After(now.Add(MaxClockSkew)) {
		return fmt.Errorf("%w: id minted at %s", ErrFutureTimestamp, ts.Format(time.RFC3339))
	}
	return nil
}

// IDTimestamp returns the creation time embedded in a UUIDv7
func IDTimestamp(id uuid.UUID) time.Time {
	sec, nsec := id.Time().UnixTime()
	return time.Unix(sec, nsec).UTC()
}

// ValidateSampleTime rejects live samples dated more than MaxClockSkew
// after now
func ValidateSampleTime(ts, now time.Time) error {
	if ts.After(now.Add(MaxClockSkew)) {
		return fmt.Errorf("%w: %s", ErrFutureTimestamp, ts.UTC().Format(time.RFC3339))
	}
	return nil
}
