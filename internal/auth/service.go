package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lookbook/server/internal/apperr"
	"lookbook/server/internal/model"
	"lookbook/server/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type Claims struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type Service struct {
	users  *store.UserRepo
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

func NewService(users *store.UserRepo, secret string, ttl time.Duration, bcryptCost int) *Service {
	return &Service{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		cost:   bcryptCost,
		now:    time.Now,
	}
}

// Signup registers a new account and issues a token. The returned user never
// carries the password hash in its JSON form.
func (s *Service) Signup(ctx context.Context, email, password, name string) (*model.User, string, error) {
	_, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return nil, "", apperr.Conflict("User already exists")
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, "", apperr.Server("Something went wrong")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}
	user := &model.User{
		Email:    email,
		Password: string(hash),
		Name:     name,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		return nil, "", apperr.Server("Something went wrong")
	}
	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login deliberately reports the same error for an unknown email and a wrong
// password so callers cannot probe which accounts exist.
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", apperr.Unauthorized("Invalid credentials")
		}
		return nil, "", apperr.Server("Something went wrong")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, "", apperr.Unauthorized("Invalid credentials")
	}
	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// UserByID resolves the account behind a verified token. A token whose
// account has since been removed yields a not-found error.
func (s *Service) UserByID(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, apperr.Server("Something went wrong")
	}
	return user, nil
}

func (s *Service) VerifyToken(tokenString string) (Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return Claims{}, apperr.Unauthorized("Invalid or expired token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Claims{}, apperr.Unauthorized("Invalid or expired token")
	}
	return *claims, nil
}

func (s *Service) issueToken(user *model.User) (string, error) {
	now := s.now().UTC()
	claims := Claims{
		ID:    user.ID,
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}
