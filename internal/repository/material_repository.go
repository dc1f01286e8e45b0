package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/medekzamen/medbot-api/internal/models"
)

// MaterialRepository provides database access to course materials.
type MaterialRepository struct {
	db *sqlx.DB
}

// NewMaterialRepository creates a new instance of MaterialRepository.
func NewMaterialRepository(db *sqlx.DB) *MaterialRepository {
	return &MaterialRepository{db: db}
}

const materialColumns = `id, tag, type, file_id, file_name, caption, course, group_lang, created_at`

// ListByTag returns materials under a tag honoring the visibility rules:
// non-admins only see rows whose course is NULL or equals theirs, and the
// group filter applies to everyone. Oldest first, the delivery order.
func (r *MaterialRepository) ListByTag(ctx context.Context, filter models.MaterialFilter) ([]models.Material, error) {
	query := `SELECT ` + materialColumns + ` FROM materials WHERE tag = $1`
	args := []interface{}{filter.Tag}

	if !filter.IsAdmin && filter.Course != nil {
		query += fmt.Sprintf(" AND (course IS NULL OR course = $%d)", len(args)+1)
		args = append(args, *filter.Course)
	}
	if filter.GroupLang != nil {
		query += fmt.Sprintf(" AND (group_lang IS NULL OR group_lang = $%d)", len(args)+1)
		args = append(args, string(*filter.GroupLang))
	}

	query += " ORDER BY created_at ASC"

	var materials []models.Material
	if err := r.db.SelectContext(ctx, &materials, query, args...); err != nil {
		return nil, fmt.Errorf("list materials by tag: %w", err)
	}
	return materials, nil
}

// ListForReview returns every material under a tag, newest first, for the
// admin delete flow.
func (r *MaterialRepository) ListForReview(ctx context.Context, tag string) ([]models.Material, error) {
	const query = `SELECT ` + materialColumns + ` FROM materials WHERE tag = $1 ORDER BY created_at DESC`
	var materials []models.Material
	if err := r.db.SelectContext(ctx, &materials, query, tag); err != nil {
		return nil, fmt.Errorf("list materials for review: %w", err)
	}
	return materials, nil
}

// ListFiles returns the newest file-bearing materials, optionally narrowed by
// tag and course, capped at limit. Backs the flat /api/files listing.
func (r *MaterialRepository) ListFiles(ctx context.Context, tag string, course *int, limit int) ([]models.Material, error) {
	query := `SELECT ` + materialColumns + ` FROM materials WHERE file_id IS NOT NULL`
	var args []interface{}

	if tag != "" {
		query += fmt.Sprintf(" AND tag = $%d", len(args)+1)
		args = append(args, tag)
	}
	if course != nil {
		query += fmt.Sprintf(" AND (course IS NULL OR course = $%d)", len(args)+1)
		args = append(args, *course)
	}

	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	var materials []models.Material
	if err := r.db.SelectContext(ctx, &materials, query, args...); err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return materials, nil
}

// GetByID returns a single material.
func (r *MaterialRepository) GetByID(ctx context.Context, id int64) (*models.Material, error) {
	const query = `SELECT ` + materialColumns + ` FROM materials WHERE id = $1 LIMIT 1`
	var material models.Material
	if err := r.db.GetContext(ctx, &material, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get material by id: %w", err)
	}
	return &material, nil
}

// Insert persists a new material and fills in its id.
func (r *MaterialRepository) Insert(ctx context.Context, material *models.Material) error {
	const query = `
INSERT INTO materials (tag, type, file_id, file_name, caption, course, group_lang)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at`
	var groupLang *string
	if material.GroupLang != nil {
		s := string(*material.GroupLang)
		groupLang = &s
	}
	row := r.db.QueryRowxContext(ctx, query,
		material.Tag, string(material.Type), material.FileID, material.FileName,
		material.Caption, material.Course, groupLang)
	if err := row.Scan(&material.ID, &material.CreatedAt); err != nil {
		return fmt.Errorf("insert material: %w", err)
	}
	return nil
}

// Delete removes one material row. Returns sql.ErrNoRows when the id is
// unknown so the caller can report it and move on.
func (r *MaterialRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM materials WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete material: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete material: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteByTag removes every material under a tag and reports how many rows
// went away.
func (r *MaterialRepository) DeleteByTag(ctx context.Context, tag string) (int64, error) {
	const query = `DELETE FROM materials WHERE tag = $1`
	res, err := r.db.ExecContext(ctx, query, tag)
	if err != nil {
		return 0, fmt.Errorf("delete materials by tag: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete materials by tag: %w", err)
	}
	return affected, nil
}

// Ping verifies database connectivity for the health endpoint.
func (r *MaterialRepository) Ping(ctx context.Context) error {
	var one int
	if err := r.db.GetContext(ctx, &one, `SELECT 1`); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}
