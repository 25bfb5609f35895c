package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/labang-online/portal-api/internal/models"
	appErrors "github.com/labang-online/portal-api/pkg/errors"
)

type chatBackend interface {
	Complete(ctx context.Context, system, message string) (string, error)
}

type chatUserLoader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// ChatService answers resident questions about barangay services through a
// generative backend, grounding each conversation in the caller's profile.
type ChatService struct {
	backend   chatBackend
	users     chatUserLoader
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewChatService constructs a ChatService instance.
func NewChatService(backend chatBackend, users chatUserLoader, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ChatService{backend: backend, users: users, metrics: metrics, validator: validate, logger: logger}
}

// Ask forwards a resident message to the assistant.
func (s *ChatService) Ask(ctx context.Context, userID string, req models.ChatRequest) (*models.ChatResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "a message is required")
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a message is required")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	reply, err := s.backend.Complete(ctx, systemPreamble(user), message)
	if err != nil {
		s.metrics.RecordChatCompletion(false)
		s.logger.Error("chat backend failed", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrCollaborator.Code, appErrors.ErrCollaborator.Status, "could not generate a response, please try again later")
	}

	s.metrics.RecordChatCompletion(true)
	return &models.ChatResponse{Reply: reply}, nil
}

func systemPreamble(user *models.User) string {
	verification := "not yet verified; they must visit the barangay hall with a valid ID to finish verification"
	if user.ResidentConfirmed {
		verification = "verified"
	}

	address := strings.TrimSpace(strings.Join([]string{user.AddressLine, user.Barangay, user.City, user.Province}, ", "))

	return fmt.Sprintf(`You are the Barangay Labang online portal assistant. Help residents with:
- certificate requests (barangay clearance, residency, indigency, good moral, business clearance), their fees and the payment options (GCash or over the counter)
- incident reports (theft, assault, vandalism, disturbance, other) and what happens after filing
- announcements and general barangay services

Answer briefly and politely in the language the resident uses. If a question needs an action you cannot perform, point the resident to the right portal page or to the barangay hall.

You are talking to %s (username %s). Their account is %s. Their registered address is %s.`,
		user.FullName, user.Username, verification, address)
}
