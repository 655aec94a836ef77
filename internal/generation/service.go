package generation

import (
	"context"
	"errors"

	"lookbook/server/internal/apperr"
	"lookbook/server/internal/files"
	"lookbook/server/internal/model"
	"lookbook/server/internal/store"

	"go.uber.org/zap"
)

type Service struct {
	repo    *store.GenerationRepo
	ns      *files.Namespace
	backend Backend
	log     *zap.SugaredLogger
}

func NewService(repo *store.GenerationRepo, ns *files.Namespace, backend Backend, log *zap.SugaredLogger) *Service {
	return &Service{repo: repo, ns: ns, backend: backend, log: log}
}

// Create runs one generation request end to end: fault check, simulated
// processing, result artifact, persisted row. A rejected request deletes the
// uploaded source and writes no row; a persistence failure after the result
// artifact exists leaves both files on disk.
func (s *Service) Create(ctx context.Context, userID uint, prompt string, style model.Style, uploadName string) (*model.Generation, error) {
	resultName, err := s.backend.Generate(ctx, userID, uploadName)
	if err != nil {
		if apperr.IsKind(err, apperr.KindOverloaded) {
			if rmErr := s.ns.Remove(userID, uploadName); rmErr != nil {
				s.log.Warnw("failed to clean up rejected upload",
					"user_id", userID, "file", uploadName, "error", rmErr)
			}
			return nil, err
		}
		s.log.Errorw("generation backend failed", "user_id", userID, "error", err)
		return nil, apperr.Server("Generation failed")
	}

	resultURL := files.SecureURL(userID, resultName)
	gen := &model.Generation{
		UserID:    userID,
		Prompt:    prompt,
		Style:     style,
		ImageURL:  files.SecureURL(userID, uploadName),
		ResultURL: &resultURL,
		Status:    model.StatusCompleted,
	}
	if _, err := s.repo.Create(ctx, gen); err != nil {
		s.log.Errorw("failed to persist generation", "user_id", userID, "error", err)
		return nil, apperr.Server("Something went wrong")
	}
	return gen, nil
}

// Recent lists the user's most recent generations, capped at limit
// (default 5).
func (s *Service) Recent(ctx context.Context, userID uint, limit int) ([]model.Generation, error) {
	gens, err := s.repo.FindByUserID(ctx, userID, limit)
	if err != nil {
		return nil, apperr.Server("Something went wrong")
	}
	return gens, nil
}

// ByID returns nil without error for a missing record.
func (s *Service) ByID(ctx context.Context, id uint) (*model.Generation, error) {
	gen, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, apperr.Server("Something went wrong")
	}
	return gen, nil
}

// Update is the administrative mutation path.
func (s *Service) Update(ctx context.Context, id uint, upd model.GenerationUpdate) (*model.Generation, error) {
	gen, err := s.repo.Update(ctx, id, upd)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Generation not found")
		}
		return nil, apperr.Server("Something went wrong")
	}
	return gen, nil
}

func (s *Service) Delete(ctx context.Context, id uint) (bool, error) {
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, apperr.Server("Something went wrong")
	}
	return removed, nil
}
