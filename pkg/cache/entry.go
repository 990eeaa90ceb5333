package cache

import (
	"encoding/json"
	"time"
)

// Entry is the stored form of a cached response.
type Entry struct {
	// Timestamp is the capture time in float seconds since the epoch.
	Timestamp float64 `json:"timestamp"`

	// Data holds the response payload and an optional headers subset.
	Data EntryData `json:"data"`
}

// EntryData is the payload portion of an entry. Exactly one of JSON or
// Content is expected to be set: JSON for decoded bodies written by this
// client, Content for raw bytes written by other producers.
type EntryData struct {
	JSON    json.RawMessage   `json:"json,omitempty"`
	Content []byte            `json:"content,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// NewEntry creates an entry captured now.
func NewEntry(payload json.RawMessage, headers map[string]string) *Entry {
	return &Entry{
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		Data: EntryData{
			JSON:    payload,
			Headers: headers,
		},
	}
}

// CapturedAt returns the capture time of the entry.
func (e *Entry) CapturedAt() time.Time {
	sec := int64(e.Timestamp)
	nsec := int64((e.Timestamp - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// Expired reports whether the entry is older than ttl at the given instant.
func (e *Entry) Expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(e.CapturedAt()) > ttl
}

// Body returns the cached payload, regardless of which shape it was stored
// in. Returns nil for an entry with no payload.
func (e *Entry) Body() json.RawMessage {
	if len(e.Data.JSON) > 0 {
		return e.Data.JSON
	}
	if len(e.Data.Content) > 0 {
		return json.RawMessage(e.Data.Content)
	}
	return nil
}
