package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResetCodeValidityWindow(t *testing.T) {
	now := time.Now().UTC()
	code := &PasswordResetCode{Code: "483920", CreatedAt: now}

	assert.True(t, code.IsValidAt(now))
	assert.True(t, code.IsValidAt(now.Add(300*time.Second)))
	assert.False(t, code.IsValidAt(now.Add(301*time.Second)))
}

func TestResetCodeUsedIsNeverValid(t *testing.T) {
	now := time.Now().UTC()
	code := &PasswordResetCode{Code: "483920", CreatedAt: now, IsUsed: true}

	assert.False(t, code.IsValidAt(now))
}
