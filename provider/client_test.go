package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placeloop/go-common/logger"
	"github.com/placeloop/go-common/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxRetries:        4,
		InitialBackoff:    time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestPlaceByID(t *testing.T) {
	var gotPath, gotAuth, gotRequestID, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-Id")
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, `{"id":"p1","name":"Blue Bottle","latitude":37.776,"longitude":-122.423,"categories":["cafe"],"rating":4.5}`)
	}))
	defer server.Close()

	client := New(server.URL, "sk-test", WithLogger(logger.NewTestLogger()), WithRetry(fastRetry()))
	place, err := client.PlaceByID(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, "/v1/places/p1", gotPath)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.NotEmpty(t, gotRequestID)
	assert.True(t, strings.HasPrefix(gotUA, "PlaceLoop Provider Client/"))
	assert.Equal(t, "Blue Bottle", place.Name)
	assert.Equal(t, []string{"cafe"}, place.Categories)
	assert.InDelta(t, 37.776, place.Latitude, 0.0001)
}

func TestPlaceByIDNotFound(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":"NOT_FOUND","message":"no such place"}}`)
	}))
	defer server.Close()

	client := New(server.URL, "", WithLogger(logger.NewTestLogger()), WithRetry(fastRetry()))
	_, err := client.PlaceByID(context.Background(), "missing")
	require.Error(t, err)

	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusNotFound, pe.Status)
	assert.True(t, pe.NotFound())
	assert.Contains(t, pe.Error(), "no such place")
	assert.Contains(t, pe.Error(), "NOT_FOUND")
	assert.Equal(t, int32(1), hits.Load(), "4xx must not retry")
}

func TestRetriesOn5xx(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"id":"p1","name":"Recovered","latitude":0,"longitude":0}`)
	}))
	defer server.Close()

	client := New(server.URL, "", WithLogger(logger.NewTestLogger()), WithRetry(fastRetry()))
	place, err := client.PlaceByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Recovered", place.Name)
	assert.Equal(t, int32(3), hits.Load())
}

func TestRetriesOn429(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"id":"p1","name":"OK","latitude":0,"longitude":0}`)
	}))
	defer server.Close()

	client := New(server.URL, "", WithLogger(logger.NewTestLogger()), WithRetry(fastRetry()))
	_, err := client.PlaceByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestBreakerFailsFast(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	log := logger.NewTestLogger()
	breaker := resilience.NewBreaker(resilience.BreakerConfig{MaxFailures: 2, CoolOff: time.Minute}, resilience.WithBreakerLogger(log))
	client := New(server.URL, "", WithLogger(log), WithRetry(fastRetry()), WithBreaker(breaker))

	_, err := client.PlaceByID(context.Background(), "p1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Equal(t, int32(2), hits.Load(), "breaker should cut retries off after MaxFailures attempts")

	// Circuit is open now, no more upstream traffic.
	_, err = client.PlaceByID(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Equal(t, int32(2), hits.Load())
}

func TestTimeoutMapsToErrTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := New(server.URL, "", WithLogger(logger.NewTestLogger()), WithRetry(fastRetry()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.PlaceByID(ctx, "p1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestMeteredCost(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 2 {
			w.Header().Set("X-Request-Cost", "7")
		}
		fmt.Fprint(w, `{"id":"p1","name":"OK","latitude":0,"longitude":0}`)
	}))
	defer server.Close()

	log := logger.NewTestLogger()
	client := New(server.URL, "", WithLogger(log), WithRetry(fastRetry()))

	_, err := client.PlaceByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(costPlaceByID), client.Cost())

	_, err = client.PlaceByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(costPlaceByID+7), client.Cost(), "header should override the per-op cost")

	assert.True(t, log.Contains("DEBUG", "cost=7"))
}

func TestSearchViewport(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"min_lat":    r.URL.Query().Get("min_lat"),
			"max_lng":    r.URL.Query().Get("max_lng"),
			"term":       r.URL.Query().Get("term"),
			"categories": r.URL.Query().Get("categories"),
			"limit":      r.URL.Query().Get("limit"),
		}
		fmt.Fprint(w, `{"places":[{"id":"p1","name":"A","latitude":1,"longitude":2},{"id":"p2","name":"B","latitude":3,"longitude":4}]}`)
	}))
	defer server.Close()

	client := New(server.URL, "", WithLogger(logger.NewTestLogger()), WithRetry(fastRetry()))
	places, err := client.SearchViewport(context.Background(), Query{
		MinLat:     12.34,
		MinLng:     -56.78,
		MaxLat:     13.34,
		MaxLng:     -55.78,
		Term:       "coffee",
		Categories: []string{"cafe", "bakery"},
		Limit:      20,
	})
	require.NoError(t, err)
	require.Len(t, places, 2)

	assert.Equal(t, "12.340000", gotQuery["min_lat"])
	assert.Equal(t, "-55.780000", gotQuery["max_lng"])
	assert.Equal(t, "coffee", gotQuery["term"])
	assert.Equal(t, "cafe,bakery", gotQuery["categories"])
	assert.Equal(t, "20", gotQuery["limit"])
	assert.Equal(t, "p2", places[1].ID)
	assert.Equal(t, int64(costSearchViewport), client.Cost())
}

func TestQuerySignature(t *testing.T) {
	base := Query{MinLat: 1, MinLng: 2, MaxLat: 3, MaxLng: 4, Term: "Coffee", Categories: []string{"cafe", "bar"}, Limit: 10}

	assert.Len(t, base.Signature(), 16)

	reordered := base
	reordered.Categories = []string{"bar", "cafe"}
	assert.Equal(t, base.Signature(), reordered.Signature())

	recased := base
	recased.Term = "  coffee "
	assert.Equal(t, base.Signature(), recased.Signature())

	moved := base
	moved.MaxLat = 3.5
	assert.NotEqual(t, base.Signature(), moved.Signature())

	limited := base
	limited.Limit = 11
	assert.NotEqual(t, base.Signature(), limited.Signature())
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "boom (OOPS)", errorMessage([]byte(`{"error":{"code":"OOPS","message":"boom"}}`)))
	assert.Equal(t, "boom", errorMessage([]byte(`{"error":{"message":"boom"}}`)))
	assert.Equal(t, "", errorMessage([]byte(`{"unrelated":true}`)))
	assert.Equal(t, "", errorMessage([]byte(`not json`)))
}

func TestPreviewTruncates(t *testing.T) {
	short := preview([]byte("hello"))
	assert.Equal(t, "hello", short)

	long := preview([]byte(strings.Repeat("x", 500)))
	assert.Contains(t, long, "[truncated, total: 500 chars]")
	assert.Less(t, len(long), 300)
}
