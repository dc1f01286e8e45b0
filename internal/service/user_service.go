package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/medekzamen/medbot-api/internal/models"
	appErrors "github.com/medekzamen/medbot-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, userID int64) (*models.User, error)
	Upsert(ctx context.Context, user *models.User) error
	ListByAudience(ctx context.Context, filter models.AudienceFilter) ([]int64, error)
	Stats(ctx context.Context) (*models.UserStats, error)
}

// UserService handles registration and profile lookups for both frontends.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs the service. A nil repo puts the service in
// degraded mode where every operation reports NOT_CONFIGURED.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// RegisterRequest carries a completed registration draft.
type RegisterRequest struct {
	UserID    int64   `json:"user_id" validate:"required"`
	Username  *string `json:"username"`
	FullName  string  `json:"full_name"`
	Course    int     `json:"course" validate:"required,min=1,max=6"`
	GroupLang string  `json:"group_lang" validate:"required,oneof=ru tj"`
}

// Register upserts the user row. Re-registering overwrites course and group
// while the original registration timestamp is preserved, so the operation
// is idempotent per identity.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	group := models.GroupLang(req.GroupLang)
	user := &models.User{
		UserID:    req.UserID,
		Username:  req.Username,
		FullName:  req.FullName,
		Course:    &req.Course,
		GroupLang: &group,
	}
	if err := s.repo.Upsert(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to save user")
	}
	return user, nil
}

func (s *UserService) ready() error {
	if s.repo == nil {
		return appErrors.Clone(appErrors.ErrNotConfigured, "database is not configured")
	}
	return nil
}

// Get returns a user profile.
func (s *UserService) Get(ctx context.Context, userID int64) (*models.User, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to load user")
	}
	return user, nil
}

// EnsureAdmin auto-registers a recognized admin identity at the maximum
// course with the default group when no row exists yet, so admins land on
// the main menu without walking the registration flow.
func (s *UserService) EnsureAdmin(ctx context.Context, userID int64, username *string, fullName string) (*models.User, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err == nil {
		return user, nil
	}
	if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to load user")
	}

	course := models.MaxCourse
	group := models.GroupRussian
	user = &models.User{
		UserID:    userID,
		Username:  username,
		FullName:  fullName,
		Course:    &course,
		GroupLang: &group,
	}
	if err := s.repo.Upsert(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to save user")
	}
	return user, nil
}

// Stats aggregates the user base for the admin stats command.
func (s *UserService) Stats(ctx context.Context) (*models.UserStats, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to aggregate stats")
	}
	return stats, nil
}
