// Package entry defines the cache entry representation shared by all tiers.
package entry

import (
	"encoding/json"
	"time"
)

// Entry is a single cached item. Exactly one of Value or Data carries the
// payload: Value holds the live value while the entry is uncompressed, Data
// holds the sealed envelope once the entry has been compressed in place.
type Entry struct {
	Value        any
	Data         []byte
	SizeBytes    int
	Compressed   bool
	CreatedAt    time.Time
	LastAccessed time.Time
	ExpiresAt    time.Time // zero means no expiration
}

// New creates an entry with the given TTL. A zero or negative TTL creates an
// entry without automatic expiration.
func New(value any, sizeBytes int, ttl time.Duration) *Entry {
	now := time.Now()
	e := &Entry{
		Value:        value,
		SizeBytes:    sizeBytes,
		CreatedAt:    now,
		LastAccessed: now,
	}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}
	return e
}

// IsExpired reports whether the entry has passed its expiration time.
func (e *Entry) IsExpired() bool {
	return e.IsExpiredAt(time.Now())
}

// IsExpiredAt reports whether the entry is expired relative to now.
func (e *Entry) IsExpiredAt(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !e.ExpiresAt.After(now)
}

// TTL returns the remaining lifetime of the entry, or zero if the entry does
// not expire.
func (e *Entry) TTL() time.Duration {
	if e.ExpiresAt.IsZero() {
		return 0
	}
	remaining := time.Until(e.ExpiresAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Touch updates the last-accessed timestamp.
func (e *Entry) Touch(now time.Time) {
	e.LastAccessed = now
}

// IdleFor returns how long the entry has gone without an access.
func (e *Entry) IdleFor(now time.Time) time.Duration {
	return now.Sub(e.LastAccessed)
}

// Wire is the serialized mirror form written to the session and persistent
// tiers. Payload is the serialized value, sealed in a compression envelope
// when Compressed is set. Timestamps are unix milliseconds; a zero ExpiresAt
// means no expiration.
type Wire struct {
	Payload    []byte `json:"p"`
	Compressed bool   `json:"c,omitempty"`
	SizeBytes  int    `json:"s"`
	CreatedAt  int64  `json:"ct"`
	ExpiresAt  int64  `json:"xt,omitempty"`
}

// ToWire converts the entry to its mirror form. The payload must be the
// entry's serialized (and possibly sealed) value, produced by the caller.
func (e *Entry) ToWire(payload []byte) Wire {
	w := Wire{
		Payload:    payload,
		Compressed: e.Compressed,
		SizeBytes:  e.SizeBytes,
		CreatedAt:  e.CreatedAt.UnixMilli(),
	}
	if !e.ExpiresAt.IsZero() {
		w.ExpiresAt = e.ExpiresAt.UnixMilli()
	}
	return w
}

// ExpiresTime returns the wire expiration as a time, or the zero time when
// the entry does not expire.
func (w Wire) ExpiresTime() time.Time {
	if w.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(w.ExpiresAt)
}

// IsExpiredAt reports whether the wire entry is expired relative to now.
func (w Wire) IsExpiredAt(now time.Time) bool {
	return w.ExpiresAt != 0 && w.ExpiresAt <= now.UnixMilli()
}

// EncodeWire marshals a wire entry for storage.
func EncodeWire(w Wire) ([]byte, error) {
	return json.Marshal(w)
}

// DecodeWire unmarshals a stored wire entry. Callers treat a decode failure
// as a corrupt entry.
func DecodeWire(data []byte) (Wire, error) {
	var w Wire
	if err := json.Unmarshal(data, &w); err != nil {
		return Wire{}, err
	}
	return w, nil
}
