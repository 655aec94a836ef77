package store

import (
	"context"
	"errors"

	"lookbook/server/internal/breaker"
	"lookbook/server/internal/model"

	"gorm.io/gorm"
)

const DefaultRecentLimit = 5

type GenerationRepo struct {
	db *gorm.DB

	createBreaker   *breaker.Breaker
	byIDBreaker     *breaker.Breaker
	byUserIDBreaker *breaker.Breaker
	updateBreaker   *breaker.Breaker
	deleteBreaker   *breaker.Breaker
}

func NewGenerationRepo(db *gorm.DB, cfg breaker.Config) *GenerationRepo {
	return &GenerationRepo{
		db:              db,
		createBreaker:   breaker.New("GenerationRepo.create", cfg),
		byIDBreaker:     breaker.New("GenerationRepo.findById", cfg),
		byUserIDBreaker: breaker.New("GenerationRepo.findByUserId", cfg),
		updateBreaker:   breaker.New("GenerationRepo.update", cfg),
		deleteBreaker:   breaker.New("GenerationRepo.delete", cfg),
	}
}

// Create inserts the record and fills in the generated id and timestamp. A
// foreign-key violation on user_id surfaces as a plain downstream error.
func (r *GenerationRepo) Create(ctx context.Context, gen *model.Generation) (*model.Generation, error) {
	return breaker.Do(ctx, r.createBreaker, func(ctx context.Context) (*model.Generation, error) {
		if err := r.db.WithContext(ctx).Create(gen).Error; err != nil {
			return nil, err
		}
		return gen, nil
	})
}

func (r *GenerationRepo) FindByID(ctx context.Context, id uint) (*model.Generation, error) {
	gen, err := breaker.Do(ctx, r.byIDBreaker, func(ctx context.Context) (*model.Generation, error) {
		var gen model.Generation
		if err := r.db.WithContext(ctx).First(&gen, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return &gen, nil
	})
	if err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, ErrNotFound
	}
	return gen, nil
}

// FindByUserID lists a user's generations newest first, capped at limit.
// Ties on created_at fall back to insertion order via id.
func (r *GenerationRepo) FindByUserID(ctx context.Context, userID uint, limit int) ([]model.Generation, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return breaker.Do(ctx, r.byUserIDBreaker, func(ctx context.Context) ([]model.Generation, error) {
		// Non-nil so an empty history serializes as [] rather than null.
		gens := []model.Generation{}
		err := r.db.WithContext(ctx).
			Where("user_id = ?", userID).
			Order("created_at DESC").
			Order("id DESC").
			Limit(limit).
			Find(&gens).Error
		if err != nil {
			return nil, err
		}
		return gens, nil
	})
}

func (r *GenerationRepo) Update(ctx context.Context, id uint, upd model.GenerationUpdate) (*model.Generation, error) {
	gen, err := breaker.Do(ctx, r.updateBreaker, func(ctx context.Context) (*model.Generation, error) {
		changes := map[string]any{}
		if upd.Prompt != nil {
			changes["prompt"] = *upd.Prompt
		}
		if upd.Style != nil {
			changes["style"] = *upd.Style
		}
		if upd.ResultURL != nil {
			changes["result_url"] = *upd.ResultURL
		}
		if upd.Status != nil {
			changes["status"] = *upd.Status
		}
		if len(changes) > 0 {
			res := r.db.WithContext(ctx).Model(&model.Generation{}).Where("id = ?", id).Updates(changes)
			if res.Error != nil {
				return nil, res.Error
			}
			if res.RowsAffected == 0 {
				return nil, nil
			}
		}
		var gen model.Generation
		if err := r.db.WithContext(ctx).First(&gen, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return &gen, nil
	})
	if err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, ErrNotFound
	}
	return gen, nil
}

// Delete reports whether a row was actually removed.
func (r *GenerationRepo) Delete(ctx context.Context, id uint) (bool, error) {
	return breaker.Do(ctx, r.deleteBreaker, func(ctx context.Context) (bool, error) {
		res := r.db.WithContext(ctx).Delete(&model.Generation{}, id)
		if res.Error != nil {
			return false, res.Error
		}
		return res.RowsAffected > 0, nil
	})
}
