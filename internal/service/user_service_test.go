package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medekzamen/medbot-api/internal/models"
	appErrors "github.com/medekzamen/medbot-api/pkg/errors"
)

type mockUserRepo struct {
	users     map[int64]*models.User
	audience  []int64
	lastAud   models.AudienceFilter
	stats     *models.UserStats
	upsertErr error
}

func (m *mockUserRepo) FindByID(ctx context.Context, userID int64) (*models.User, error) {
	if user, ok := m.users[userID]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Upsert(ctx context.Context, user *models.User) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if m.users == nil {
		m.users = make(map[int64]*models.User)
	}
	copy := *user
	m.users[user.UserID] = &copy
	return nil
}

func (m *mockUserRepo) ListByAudience(ctx context.Context, filter models.AudienceFilter) ([]int64, error) {
	m.lastAud = filter
	return m.audience, nil
}

func (m *mockUserRepo) Stats(ctx context.Context) (*models.UserStats, error) {
	return m.stats, nil
}

func TestRegisterUpsertIsIdempotent(t *testing.T) {
	repo := &mockUserRepo{}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	_, err := svc.Register(context.Background(), RegisterRequest{
		UserID: 42, FullName: "Some Student", Course: 1, GroupLang: "ru",
	})
	require.NoError(t, err)

	user, err := svc.Register(context.Background(), RegisterRequest{
		UserID: 42, FullName: "Some Student", Course: 3, GroupLang: "tj",
	})
	require.NoError(t, err)

	// Exactly one row, reflecting the most recent values.
	assert.Len(t, repo.users, 1)
	assert.Equal(t, 3, *user.Course)
	assert.Equal(t, models.GroupTajik, *user.GroupLang)
}

func TestRegisterValidation(t *testing.T) {
	svc := NewUserService(&mockUserRepo{}, validator.New(), zap.NewNop())

	cases := []RegisterRequest{
		{UserID: 1, Course: 0, GroupLang: "ru"},
		{UserID: 1, Course: 7, GroupLang: "ru"},
		{UserID: 1, Course: 2, GroupLang: "en"},
	}
	for _, req := range cases {
		_, err := svc.Register(context.Background(), req)
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	}
}

func TestGetUnknownUser(t *testing.T) {
	svc := NewUserService(&mockUserRepo{}, validator.New(), zap.NewNop())

	_, err := svc.Get(context.Background(), 404)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestEnsureAdminCreatesDefaultRow(t *testing.T) {
	repo := &mockUserRepo{}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	user, err := svc.EnsureAdmin(context.Background(), 7, nil, "Admin")
	require.NoError(t, err)
	assert.Equal(t, models.MaxCourse, *user.Course)
	assert.Equal(t, models.GroupRussian, *user.GroupLang)

	// Existing rows are returned untouched.
	course := 2
	group := models.GroupTajik
	repo.users[7] = &models.User{UserID: 7, Course: &course, GroupLang: &group}
	again, err := svc.EnsureAdmin(context.Background(), 7, nil, "Admin")
	require.NoError(t, err)
	assert.Equal(t, 2, *again.Course)
}
