package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/medekzamen/medbot-api/internal/models"
	appErrors "github.com/medekzamen/medbot-api/pkg/errors"
)

type materialRepository interface {
	ListByTag(ctx context.Context, filter models.MaterialFilter) ([]models.Material, error)
	ListForReview(ctx context.Context, tag string) ([]models.Material, error)
	ListFiles(ctx context.Context, tag string, course *int, limit int) ([]models.Material, error)
	GetByID(ctx context.Context, id int64) (*models.Material, error)
	Insert(ctx context.Context, material *models.Material) error
	Delete(ctx context.Context, id int64) error
	DeleteByTag(ctx context.Context, tag string) (int64, error)
	Ping(ctx context.Context) error
}

// FileResolver exchanges opaque file references for download URLs.
type FileResolver interface {
	FileURL(ctx context.Context, fileID string) (string, error)
}

// ResolvedMaterial is a material plus its resolved download URL. The URL is
// nil when the material has no file or resolution failed; resolution failure
// degrades the item, it never fails the request.
type ResolvedMaterial struct {
	models.Material
	DownloadURL *string `json:"download_url"`
}

// FileLink is the flat listing entry served to the legacy front-end.
type FileLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// MaterialService handles material queries, uploads, deletions and file URL
// resolution.
type MaterialService struct {
	repo        materialRepository
	resolver    FileResolver
	concurrency int
	logger      *zap.Logger
}

// NewMaterialService constructs the service. A nil resolver disables URL
// resolution (materials are returned without download links); a nil repo puts
// the service in degraded mode where every operation reports NOT_CONFIGURED.
func NewMaterialService(repo materialRepository, resolver FileResolver, concurrency int, logger *zap.Logger) *MaterialService {
	if concurrency <= 0 {
		concurrency = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaterialService{repo: repo, resolver: resolver, concurrency: concurrency, logger: logger}
}

func (s *MaterialService) ready() error {
	if s.repo == nil {
		return appErrors.Clone(appErrors.ErrNotConfigured, "database is not configured")
	}
	return nil
}

// ListByTag returns materials visible to the requester, oldest first. An
// empty result is a normal outcome, not an error.
func (s *MaterialService) ListByTag(ctx context.Context, filter models.MaterialFilter) ([]models.Material, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	materials, err := s.repo.ListByTag(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to list materials")
	}
	return materials, nil
}

// ListResolved returns visible materials with download URLs resolved
// concurrently. Output order always matches query order; entries whose
// resolution fails keep a nil URL.
func (s *MaterialService) ListResolved(ctx context.Context, filter models.MaterialFilter) ([]ResolvedMaterial, error) {
	materials, err := s.ListByTag(ctx, filter)
	if err != nil {
		return nil, err
	}

	resolved := make([]ResolvedMaterial, len(materials))
	for i, m := range materials {
		resolved[i] = ResolvedMaterial{Material: m}
	}
	s.resolveAll(ctx, resolved)
	return resolved, nil
}

// ListFileLinks serves the flat files listing: newest file-bearing materials
// under an optional tag/course, entries that fail to resolve are dropped.
func (s *MaterialService) ListFileLinks(ctx context.Context, tag string, course *int) ([]FileLink, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	materials, err := s.repo.ListFiles(ctx, tag, course, 50)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to list files")
	}

	resolved := make([]ResolvedMaterial, len(materials))
	for i, m := range materials {
		resolved[i] = ResolvedMaterial{Material: m}
	}
	s.resolveAll(ctx, resolved)

	links := make([]FileLink, 0, len(resolved))
	for _, r := range resolved {
		if r.DownloadURL == nil {
			continue
		}
		name := "Без названия"
		if r.FileName != nil && *r.FileName != "" {
			name = *r.FileName
		}
		links = append(links, FileLink{Name: name, URL: *r.DownloadURL})
	}
	return links, nil
}

// ResolveFile returns a material together with its freshly resolved download
// URL, for streaming the file back through the API. Unknown ids, file-less
// materials and failed resolutions all surface as not found.
func (s *MaterialService) ResolveFile(ctx context.Context, id int64) (*models.Material, string, error) {
	if err := s.ready(); err != nil {
		return nil, "", err
	}
	material, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "material not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to load material")
	}
	if material.FileID == nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "material has no file")
	}
	if s.resolver == nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotConfigured, "bot token is not configured")
	}

	url, err := s.resolver.FileURL(ctx, *material.FileID)
	if err != nil {
		s.logger.Sugar().Warnw("file resolution failed", "material_id", id, "error", err)
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "file is not available")
	}
	return material, url, nil
}

// ListForReview returns every material under a tag, newest first, for the
// admin delete listing.
func (s *MaterialService) ListForReview(ctx context.Context, tag string) ([]models.Material, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	materials, err := s.repo.ListForReview(ctx, tag)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to list materials")
	}
	return materials, nil
}

// Upload persists a new material.
func (s *MaterialService) Upload(ctx context.Context, material *models.Material) error {
	if material.Tag == "" {
		return appErrors.Clone(appErrors.ErrValidation, "tag is required")
	}
	if !material.Type.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unsupported material type")
	}
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.repo.Insert(ctx, material); err != nil {
		return appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to save material")
	}
	return nil
}

// DeleteMany removes the given ids one by one. Unknown ids are collected and
// skipped; deletion is not atomic across ids by design.
func (s *MaterialService) DeleteMany(ctx context.Context, ids []int64) (deleted, missing []int64, err error) {
	if err := s.ready(); err != nil {
		return nil, nil, err
	}
	for _, id := range ids {
		if err := s.repo.Delete(ctx, id); err != nil {
			if err == sql.ErrNoRows {
				missing = append(missing, id)
				continue
			}
			return deleted, missing, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to delete material")
		}
		deleted = append(deleted, id)
	}
	return deleted, missing, nil
}

// DeleteAll removes every material under a tag.
func (s *MaterialService) DeleteAll(ctx context.Context, tag string) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	count, err := s.repo.DeleteByTag(ctx, tag)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to delete materials")
	}
	return count, nil
}

// Ping probes database connectivity for the health endpoint.
func (s *MaterialService) Ping(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.repo.Ping(ctx); err != nil {
		return appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "database is unreachable")
	}
	return nil
}

// resolveAll fills in download URLs in place, bounded by the configured
// concurrency. Slots are addressed by index so completion order cannot
// reorder the list.
func (s *MaterialService) resolveAll(ctx context.Context, materials []ResolvedMaterial) {
	if s.resolver == nil {
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range materials {
		if materials[i].FileID == nil {
			continue
		}
		i := i
		g.Go(func() error {
			url, err := s.resolver.FileURL(ctx, *materials[i].FileID)
			if err != nil {
				s.logger.Sugar().Warnw("file resolution failed",
					"material_id", materials[i].ID, "error", err)
				return nil
			}
			materials[i].DownloadURL = &url
			return nil
		})
	}

	_ = g.Wait()
}
