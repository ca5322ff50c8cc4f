package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWaitForAnyKeyMessageWithoutTTY(t *testing.T) {
	withoutTTY(t)
	WaitForAnyKeyMessage("press a key to continue the sweep")
}

func TestAskForConfirmWithoutTTY(t *testing.T) {
	withoutTTY(t)
	assert.Equal(t, byte(0), AskForConfirm("clear all entries?", 'n'))
}
