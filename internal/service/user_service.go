package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/labang-online/portal-api/internal/models"
	appErrors "github.com/labang-online/portal-api/pkg/errors"
	"github.com/labang-online/portal-api/pkg/storage"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	SetResidentConfirmed(ctx context.Context, id string, confirmed bool) error
	SetActive(ctx context.Context, id string, active bool) error
	UpdateRole(ctx context.Context, id string, role models.UserRole) error
	CountAdmins(ctx context.Context, excludeID string) (int, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
}

// PhotoUpload carries the raw bytes of an incoming profile image.
type PhotoUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// UserService covers profile self-service and staff account administration.
type UserService struct {
	repo      userRepository
	audits    auditRecorder
	store     storage.ObjectStore
	bucket    string
	maxUpload int64
	allowed   map[string]bool
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs a UserService instance.
func NewUserService(repo userRepository, audits auditRecorder, store storage.ObjectStore, bucket string, maxUpload int64, allowedMIMEs []string, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	allowed := make(map[string]bool, len(allowedMIMEs))
	for _, m := range allowedMIMEs {
		allowed[m] = true
	}
	return &UserService{repo: repo, audits: audits, store: store, bucket: bucket, maxUpload: maxUpload, allowed: allowed, validator: validate, logger: logger}
}

// GetProfile returns the account for the given user id.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// UpdateProfile persists resident-editable fields. Uploads run before the
// row is written; an upload failure aborts the save entirely.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest, profilePhoto, residentIDPhoto *PhotoUpload) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if req.Username != user.Username {
		if _, err := s.repo.FindByUsername(ctx, req.Username); err == nil {
			return nil, appErrors.Clone(appErrors.ErrConflict, "username is already taken")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check username")
		}
	}

	if profilePhoto != nil {
		url, err := s.uploadPhoto(profilePhoto, "profile-photos")
		if err != nil {
			return nil, err
		}
		user.ProfilePhotoURL = &url
	}
	if residentIDPhoto != nil {
		url, err := s.uploadPhoto(residentIDPhoto, "resident-ids")
		if err != nil {
			return nil, err
		}
		user.ResidentIDPhotoURL = &url
	}

	user.Username = req.Username
	user.FullName = req.FullName
	user.ContactNumber = req.ContactNumber
	user.AddressLine = req.AddressLine
	user.Barangay = req.Barangay
	user.City = req.City
	user.Province = req.Province
	user.PostalCode = req.PostalCode
	if req.DateOfBirth != "" {
		parsed, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "date of birth must be YYYY-MM-DD")
		}
		user.DateOfBirth = &parsed
	}

	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save profile")
	}
	return user, nil
}

// List returns users for the staff console.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// SetResidentConfirmed flips residency verification for an account.
func (s *UserService) SetResidentConfirmed(ctx context.Context, actor *models.JWTClaims, userID string, confirmed bool) error {
	if err := s.repo.SetResidentConfirmed(ctx, userID, confirmed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update verification")
	}
	s.recordAudit(ctx, actor, models.AuditActionUserVerify, userID, fmt.Sprintf("resident_confirmed=%t", confirmed))
	return nil
}

// SetActive enables or disables an account. Deactivating an admin runs the
// same last-admin guard as a demotion, since an inactive admin cannot act.
func (s *UserService) SetActive(ctx context.Context, actor *models.JWTClaims, userID string, active bool) error {
	if !active {
		target, err := s.repo.FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "user not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
		}
		if target.Role == models.RoleAdmin {
			if err := s.guardLastAdmin(ctx, userID); err != nil {
				return err
			}
		}
	}

	if err := s.repo.SetActive(ctx, userID, active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update account state")
	}

	action := models.AuditActionUserActivate
	if !active {
		action = models.AuditActionUserDeactivate
	}
	s.recordAudit(ctx, actor, action, userID, "")
	return nil
}

// ChangeRole moves a user between roles. Demoting the last remaining admin
// is refused so the portal can never lock itself out.
func (s *UserService) ChangeRole(ctx context.Context, actor *models.JWTClaims, userID string, req models.ChangeRoleRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid role payload")
	}

	target, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if target.Role == req.Role {
		return nil
	}

	if target.Role == models.RoleAdmin && req.Role != models.RoleAdmin {
		if err := s.guardLastAdmin(ctx, userID); err != nil {
			return err
		}
	}

	if err := s.repo.UpdateRole(ctx, userID, req.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update role")
	}

	s.recordAudit(ctx, actor, models.AuditActionRoleChange, userID, fmt.Sprintf("%s->%s", target.Role, req.Role))
	return nil
}

func (s *UserService) guardLastAdmin(ctx context.Context, excludeID string) error {
	remaining, err := s.repo.CountAdmins(ctx, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count admins")
	}
	if remaining == 0 {
		return appErrors.Clone(appErrors.ErrLastAdmin, "")
	}
	return nil
}

func (s *UserService) uploadPhoto(photo *PhotoUpload, folder string) (string, error) {
	if int64(len(photo.Data)) > s.maxUpload {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("image exceeds the %d MB limit", s.maxUpload/(1024*1024)))
	}
	if len(s.allowed) > 0 && !s.allowed[photo.ContentType] {
		return "", appErrors.Clone(appErrors.ErrValidation, "only JPEG and PNG images are accepted")
	}
	url, err := s.store.Upload(s.bucket, folder, photo.Filename, photo.Data)
	if err != nil {
		s.logger.Error("photo upload failed", zap.Error(err))
		return "", appErrors.Wrap(err, appErrors.ErrCollaborator.Code, appErrors.ErrCollaborator.Status, "could not store the uploaded image")
	}
	return url, nil
}

func (s *UserService) recordAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID, detail string) {
	entry := &models.AuditLog{
		Action:     action,
		Resource:   "users",
		ResourceID: &resourceID,
		Detail:     detail,
	}
	if actor != nil {
		entry.UserID = &actor.UserID
	}
	if err := s.audits.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
