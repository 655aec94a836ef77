package store

import (
	"context"
	"errors"

	"lookbook/server/internal/breaker"
	"lookbook/server/internal/model"

	"gorm.io/gorm"
)

type UserRepo struct {
	db *gorm.DB

	createBreaker  *breaker.Breaker
	byIDBreaker    *breaker.Breaker
	byEmailBreaker *breaker.Breaker
}

func NewUserRepo(db *gorm.DB, cfg breaker.Config) *UserRepo {
	return &UserRepo{
		db:             db,
		createBreaker:  breaker.New("UserRepo.create", cfg),
		byIDBreaker:    breaker.New("UserRepo.findById", cfg),
		byEmailBreaker: breaker.New("UserRepo.findByEmail", cfg),
	}
}

func (r *UserRepo) Create(ctx context.Context, user *model.User) (*model.User, error) {
	return breaker.Do(ctx, r.createBreaker, func(ctx context.Context) (*model.User, error) {
		if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
			return nil, err
		}
		return user, nil
	})
}

// FindByID returns ErrNotFound for a missing row. A miss is a successful
// round trip as far as the breaker is concerned.
func (r *UserRepo) FindByID(ctx context.Context, id uint) (*model.User, error) {
	user, err := breaker.Do(ctx, r.byIDBreaker, func(ctx context.Context) (*model.User, error) {
		var user model.User
		if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return &user, nil
	})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := breaker.Do(ctx, r.byEmailBreaker, func(ctx context.Context) (*model.User, error) {
		var user model.User
		if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return &user, nil
	})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}
