package service

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/labang-online/portal-api/internal/models"
	appErrors "github.com/labang-online/portal-api/pkg/errors"
)

type mockChatBackend struct {
	reply  string
	err    error
	system string
}

func (m *mockChatBackend) Complete(ctx context.Context, system, message string) (string, error) {
	m.system = system
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func TestChatRejectsBlankMessage(t *testing.T) {
	users := newMockUserRepo(&models.User{ID: "u1", Username: "juandc", FullName: "Juan Dela Cruz"})
	svc := NewChatService(&mockChatBackend{reply: "ok"}, users, nil, validator.New(), zap.NewNop())

	_, err := svc.Ask(context.Background(), "u1", models.ChatRequest{Message: "   "})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestChatGroundsPreambleInProfile(t *testing.T) {
	users := newMockUserRepo(&models.User{ID: "u1", Username: "juandc", FullName: "Juan Dela Cruz", ResidentConfirmed: true, Barangay: "Labang"})
	backend := &mockChatBackend{reply: "Magandang araw!"}
	svc := NewChatService(backend, users, nil, validator.New(), zap.NewNop())

	res, err := svc.Ask(context.Background(), "u1", models.ChatRequest{Message: "Magkano ang barangay clearance?"})
	require.NoError(t, err)
	assert.Equal(t, "Magandang araw!", res.Reply)
	assert.Contains(t, backend.system, "Juan Dela Cruz")
	assert.Contains(t, backend.system, "verified")
}

func TestChatBackendFailureIsUnified(t *testing.T) {
	users := newMockUserRepo(&models.User{ID: "u1", Username: "juandc", FullName: "Juan Dela Cruz"})
	svc := NewChatService(&mockChatBackend{err: errors.New("all chat models failed")}, users, nil, validator.New(), zap.NewNop())

	_, err := svc.Ask(context.Background(), "u1", models.ChatRequest{Message: "Kumusta?"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCollaborator.Code, appErrors.FromError(err).Code)
}
