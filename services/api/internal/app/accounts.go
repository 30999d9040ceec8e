package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"arview/pkg/auth"
	"arview/pkg/domain"
	"arview/pkg/store"
)

type RegisterInput struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in RegisterInput) Validate() ValidationResult {
	var r ValidationResult
	r.length("fullName", strings.TrimSpace(in.FullName), 2, 100)
	if r.required("email", in.Email) {
		r.email("email", strings.TrimSpace(in.Email))
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		r.Add("password", "%s", strings.TrimPrefix(err.Error(), "password "))
	}
	return r
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in LoginInput) Validate() ValidationResult {
	var r ValidationResult
	if r.required("email", in.Email) {
		r.email("email", strings.TrimSpace(in.Email))
	}
	r.required("password", in.Password)
	return r
}

// Register creates an email account and opens a session. The first account
// ever created becomes an admin.
func (a *App) Register(ctx context.Context, in RegisterInput) (domain.User, string, error) {
	if err := in.Validate().Err(); err != nil {
		return domain.User{}, "", err
	}
	email := normalizeEmail(in.Email)
	if _, exists, err := a.store.GetUserByEmail(email); err != nil {
		return domain.User{}, "", fmt.Errorf("check email: %w", err)
	} else if exists {
		return domain.User{}, "", ErrEmailExists
	}
	count, err := a.store.UserCount()
	if err != nil {
		return domain.User{}, "", fmt.Errorf("count users: %w", err)
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, "", err
	}
	role := domain.RoleUser
	if count == 0 {
		role = domain.RoleAdmin
	}
	now := a.clock()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(in.FullName),
		Role:         role,
		PlanType:     domain.PlanFree,
		Provider:     domain.ProviderEmail,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.CreateUser(user); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return domain.User{}, "", ErrEmailExists
		}
		return domain.User{}, "", fmt.Errorf("create user: %w", err)
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("create session: %w", err)
	}
	return user, token, nil
}

// Login verifies email credentials and opens a session.
func (a *App) Login(ctx context.Context, in LoginInput) (domain.User, string, error) {
	if err := in.Validate().Err(); err != nil {
		return domain.User{}, "", err
	}
	user, ok, err := a.store.GetUserByEmail(normalizeEmail(in.Email))
	if err != nil {
		return domain.User{}, "", fmt.Errorf("load user: %w", err)
	}
	if !ok || user.Provider != domain.ProviderEmail || !auth.CheckPassword(in.Password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("create session: %w", err)
	}
	return user, token, nil
}

// Logout revokes token. Unknown or malformed tokens are ignored.
func (a *App) Logout(ctx context.Context, token string) error {
	return a.sessions.DeleteSession(ctx, token)
}

// UserFromToken resolves a session token to its user.
func (a *App) UserFromToken(ctx context.Context, token string) (domain.User, error) {
	if strings.TrimSpace(token) == "" {
		return domain.User{}, ErrUnauthorized
	}
	userID, ok, err := a.sessions.GetUserIDByToken(ctx, token)
	if err != nil || !ok {
		return domain.User{}, ErrUnauthorized
	}
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUnauthorized
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
