package cache

import (
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// State classifies an envelope's age against a domain's TTL pair.
type State int

const (
	// StateFresh entries are younger than the soft TTL and always servable.
	StateFresh State = iota
	// StateStale entries sit between the soft and hard TTLs and are
	// servable only when the caller explicitly allows stale reads.
	StateStale
	// StateExpired entries have passed the hard TTL and are never served.
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	}
	return "expired"
}

// Envelope is the serialized unit stored per key: the domain payload plus
// the metadata needed to classify it without decoding the payload.
type Envelope struct {
	Schema   string             `msgpack:"s"`
	Owner    string             `msgpack:"o"`
	CachedAt time.Time          `msgpack:"t"`
	Payload  msgpack.RawMessage `msgpack:"p"`
}

// Age returns how long ago the envelope was written.
func (e *Envelope) Age(now time.Time) time.Duration {
	return now.Sub(e.CachedAt)
}

// State classifies the envelope given a soft and hard TTL (soft <= hard).
func (e *Envelope) State(now time.Time, soft, hard time.Duration) State {
	age := e.Age(now)
	if age >= hard {
		return StateExpired
	}
	if age >= soft {
		return StateStale
	}
	return StateFresh
}

// encodeEnvelope wraps an already-serialized payload.
func encodeEnvelope(schema, owner string, cachedAt time.Time, payload []byte) ([]byte, error) {
	return msgpack.Marshal(&Envelope{
		Schema:   schema,
		Owner:    owner,
		CachedAt: cachedAt,
		Payload:  payload,
	})
}

// decodeEnvelope parses raw store bytes. The payload stays raw so callers
// that only need classification never pay for payload decoding.
func decodeEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := msgpack.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
