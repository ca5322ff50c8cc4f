package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTestLoggerCaptures(t *testing.T) {
	log := NewTestLogger()
	log.Info("hello %s", "world")
	log.Warn("watch out")

	entries := log.Entries()
	assert.Len(t, entries, 2)
	assert.Equal(t, "INFO", entries[0].Severity)
	assert.Equal(t, "hello world", entries[0].Formatted())
	assert.True(t, log.Contains("WARNING", "watch out"))
	assert.False(t, log.Contains("ERROR", "watch out"))
}

func TestTestLoggerWithSharesEntries(t *testing.T) {
	log := NewTestLogger()
	child := log.With(map[string]interface{}{"domain": "location"})
	child.Error("fix failed")

	assert.True(t, log.Contains("ERROR", "fix failed"))
}

func TestTestLoggerStack(t *testing.T) {
	log := NewTestLogger()
	next := NewTestLogger()
	stacked := log.Stack(next)
	stacked.Info("both")

	assert.True(t, log.Contains("INFO", "both"))
	assert.True(t, next.Contains("INFO", "both"))
}
