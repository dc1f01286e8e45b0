package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/medekzamen/medbot-api/internal/models"
)

// UserRepository provides database access to registered bot users.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns a user by Telegram identity.
func (r *UserRepository) FindByID(ctx context.Context, userID int64) (*models.User, error) {
	const query = `SELECT user_id, username, full_name, course, group_lang, registered_at FROM users WHERE user_id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// Upsert inserts the user or, when the identity is already known, overwrites
// the profile fields while preserving the original registration timestamp.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	const query = `
INSERT INTO users (user_id, username, full_name, course, group_lang)
VALUES (:user_id, :username, :full_name, :course, :group_lang)
ON CONFLICT (user_id) DO UPDATE
SET username = EXCLUDED.username,
    full_name = EXCLUDED.full_name,
    course = EXCLUDED.course,
    group_lang = EXCLUDED.group_lang`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// ListByAudience returns the Telegram ids of every user matching the
// broadcast filter. Nil filter fields widen the audience to everyone.
func (r *UserRepository) ListByAudience(ctx context.Context, filter models.AudienceFilter) ([]int64, error) {
	baseQuery := `SELECT user_id FROM users WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Course != nil {
		conditions = append(conditions, fmt.Sprintf("course = $%d", len(args)+1))
		args = append(args, *filter.Course)
	}
	if filter.GroupLang != nil {
		conditions = append(conditions, fmt.Sprintf("group_lang = $%d", len(args)+1))
		args = append(args, string(*filter.GroupLang))
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}
	baseQuery += " ORDER BY user_id"

	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, baseQuery, args...); err != nil {
		return nil, fmt.Errorf("list broadcast audience: %w", err)
	}
	return ids, nil
}

// Stats aggregates the user base for the admin stats command.
func (r *UserRepository) Stats(ctx context.Context) (*models.UserStats, error) {
	stats := &models.UserStats{
		ByCourse: make(map[int]int),
		ByGroup:  make(map[models.GroupLang]int),
	}

	if err := r.db.GetContext(ctx, &stats.Total, `SELECT COUNT(*) FROM users`); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	courseRows := []struct {
		Course int `db:"course"`
		Count  int `db:"count"`
	}{}
	const byCourse = `SELECT course, COUNT(*) AS count FROM users WHERE course IS NOT NULL GROUP BY course ORDER BY course`
	if err := r.db.SelectContext(ctx, &courseRows, byCourse); err != nil {
		return nil, fmt.Errorf("count users by course: %w", err)
	}
	for _, row := range courseRows {
		stats.ByCourse[row.Course] = row.Count
	}

	groupRows := []struct {
		GroupLang models.GroupLang `db:"group_lang"`
		Count     int              `db:"count"`
	}{}
	const byGroup = `SELECT group_lang, COUNT(*) AS count FROM users WHERE group_lang IS NOT NULL GROUP BY group_lang ORDER BY group_lang`
	if err := r.db.SelectContext(ctx, &groupRows, byGroup); err != nil {
		return nil, fmt.Errorf("count users by group: %w", err)
	}
	for _, row := range groupRows {
		stats.ByGroup[row.GroupLang] = row.Count
	}

	if err := r.db.GetContext(ctx, &stats.Materials, `SELECT COUNT(*) FROM materials`); err != nil {
		return nil, fmt.Errorf("count materials: %w", err)
	}

	return stats, nil
}
