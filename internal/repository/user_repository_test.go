package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medekzamen/medbot-api/internal/models"
)

func TestFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"user_id", "username", "full_name", "course", "group_lang", "registered_at"}).
		AddRow(int64(42), "student42", "Some Student", 1, "ru", now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, username, full_name, course, group_lang, registered_at FROM users WHERE user_id = $1 LIMIT 1")).
		WithArgs(int64(42)).
		WillReturnRows(rows)

	user, err := repo.FindByID(context.Background(), 42)
	require.NoError(t, err)
	require.NotNil(t, user.Course)
	assert.Equal(t, 1, *user.Course)
	assert.True(t, user.Registered())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(0, 1))

	course := 2
	group := models.GroupTajik
	err := repo.Upsert(context.Background(), &models.User{
		UserID:    42,
		FullName:  "Some Student",
		Course:    &course,
		GroupLang: &group,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByAudienceAllUsers(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	rows := sqlmock.NewRows([]string{"user_id"}).AddRow(int64(1)).AddRow(int64(2)).AddRow(int64(3))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id FROM users WHERE 1=1 ORDER BY user_id")).
		WillReturnRows(rows)

	ids, err := repo.ListByAudience(context.Background(), models.AudienceFilter{})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByAudienceFiltered(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	course := 3
	group := models.GroupRussian
	rows := sqlmock.NewRows([]string{"user_id"}).AddRow(int64(7))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id FROM users WHERE 1=1 AND course = $1 AND group_lang = $2 ORDER BY user_id")).
		WithArgs(course, "ru").
		WillReturnRows(rows)

	ids, err := repo.ListByAudience(context.Background(), models.AudienceFilter{Course: &course, GroupLang: &group})
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStats(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(10))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT course, COUNT(*) AS count FROM users WHERE course IS NOT NULL GROUP BY course ORDER BY course")).
		WillReturnRows(sqlmock.NewRows([]string{"course", "count"}).AddRow(1, 6).AddRow(2, 4))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT group_lang, COUNT(*) AS count FROM users WHERE group_lang IS NOT NULL GROUP BY group_lang ORDER BY group_lang")).
		WillReturnRows(sqlmock.NewRows([]string{"group_lang", "count"}).AddRow("ru", 7).AddRow("tj", 3))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM materials")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(25))

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, 6, stats.ByCourse[1])
	assert.Equal(t, 7, stats.ByGroup[models.GroupRussian])
	assert.Equal(t, 25, stats.Materials)
	assert.NoError(t, mock.ExpectationsWereMet())
}
