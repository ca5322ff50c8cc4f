package provider

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

var (
	// ErrTimeout wraps deadline failures talking to the provider.
	ErrTimeout = errors.New("provider request timed out")

	// ErrUpstreamUnavailable is returned while the circuit breaker is open.
	// Callers holding stale cache entries should serve those instead.
	ErrUpstreamUnavailable = errors.New("provider upstream unavailable")
)

// Place is the provider's record for a single place. The cache layer stores
// it as an opaque payload; only the provider and domain layers look inside.
type Place struct {
	ID         string    `json:"id" msgpack:"id"`
	Name       string    `json:"name" msgpack:"name"`
	Address    string    `json:"address,omitempty" msgpack:"address,omitempty"`
	Latitude   float64   `json:"latitude" msgpack:"latitude"`
	Longitude  float64   `json:"longitude" msgpack:"longitude"`
	Categories []string  `json:"categories,omitempty" msgpack:"categories,omitempty"`
	Rating     float64   `json:"rating,omitempty" msgpack:"rating,omitempty"`
	PriceLevel int       `json:"priceLevel,omitempty" msgpack:"priceLevel,omitempty"`
	Phone      string    `json:"phone,omitempty" msgpack:"phone,omitempty"`
	Website    string    `json:"website,omitempty" msgpack:"website,omitempty"`
	PhotoURLs  []string  `json:"photoUrls,omitempty" msgpack:"photoUrls,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt,omitempty" msgpack:"updatedAt,omitempty"`
}

// Query describes a viewport search against the provider.
type Query struct {
	MinLat     float64  `json:"minLat" msgpack:"minLat"`
	MinLng     float64  `json:"minLng" msgpack:"minLng"`
	MaxLat     float64  `json:"maxLat" msgpack:"maxLat"`
	MaxLng     float64  `json:"maxLng" msgpack:"maxLng"`
	Term       string   `json:"term,omitempty" msgpack:"term,omitempty"`
	Categories []string `json:"categories,omitempty" msgpack:"categories,omitempty"`
	Limit      int      `json:"limit,omitempty" msgpack:"limit,omitempty"`
}

// Signature returns a stable 16 character hash of the query. It is the cache
// key for search results and the span attribute on provider calls. Queries
// that differ only in category order, term casing or surrounding whitespace
// share a signature.
func (q Query) Signature() string {
	cats := append([]string(nil), q.Categories...)
	sort.Strings(cats)
	var sb strings.Builder
	fmt.Fprintf(&sb, "%.6f|%.6f|%.6f|%.6f|%s|%s|%d",
		q.MinLat, q.MinLng, q.MaxLat, q.MaxLng,
		strings.ToLower(strings.TrimSpace(q.Term)),
		strings.Join(cats, ","),
		q.Limit)
	return fmt.Sprintf("%016x", xxhash.Sum64String(sb.String()))
}

func (q Query) values() url.Values {
	v := url.Values{}
	v.Set("min_lat", strconv.FormatFloat(q.MinLat, 'f', 6, 64))
	v.Set("min_lng", strconv.FormatFloat(q.MinLng, 'f', 6, 64))
	v.Set("max_lat", strconv.FormatFloat(q.MaxLat, 'f', 6, 64))
	v.Set("max_lng", strconv.FormatFloat(q.MaxLng, 'f', 6, 64))
	if q.Term != "" {
		v.Set("term", q.Term)
	}
	if len(q.Categories) > 0 {
		v.Set("categories", strings.Join(q.Categories, ","))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// Error carries the request context of a failed provider call.
type Error struct {
	URL       string
	Method    string
	Status    int
	Body      string
	RequestID string
	Err       error
}

func (e *Error) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NotFound reports whether the provider has no record for the requested id.
func (e *Error) NotFound() bool {
	return e != nil && e.Status == http.StatusNotFound
}

func newError(url, method string, status int, body, requestID string, err error) *Error {
	return &Error{
		URL:       url,
		Method:    method,
		Status:    status,
		Body:      body,
		RequestID: requestID,
		Err:       err,
	}
}
