package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func withoutTTY(t *testing.T) {
	t.Helper()
	original := HasTTY
	HasTTY = false
	t.Cleanup(func() { HasTTY = original })
}

func TestClearScreenWithoutTTY(t *testing.T) {
	withoutTTY(t)
	ClearScreen()
}

func TestShowSpinnerWithoutTTY(t *testing.T) {
	withoutTTY(t)
	ran := false
	ShowSpinner("working", func() { ran = true })
	assert.True(t, ran)
}
