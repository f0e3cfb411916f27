package account

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// SeedAccount is one entry of the seed file.
type SeedAccount struct {
	Email     string `yaml:"email"`
	Password  string `yaml:"password"`
	FirstName string `yaml:"firstName"`
	LastName  string `yaml:"lastName"`
	Role      string `yaml:"role"`
	Active    *bool  `yaml:"active"`
}

type seedFile struct {
	Accounts []SeedAccount `yaml:"accounts"`
}

// LoadSeed reads the account seed file.
func LoadSeed(path string) ([]SeedAccount, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for i, a := range f.Accounts {
		if a.Email == "" || a.Password == "" {
			return nil, fmt.Errorf("seed account %d: email and password are required", i)
		}
		if a.Role != "" && a.Role != RoleModerator && a.Role != RoleAdmin {
			return nil, fmt.Errorf("seed account %s: unknown role %q", a.Email, a.Role)
		}
	}
	return f.Accounts, nil
}

type seedStore interface {
	GetByEmail(ctx context.Context, email string) (User, error)
	Create(ctx context.Context, u User) (User, error)
}

// Seed inserts every account whose email does not exist yet. Existing accounts are left
// untouched, so running it on every start is safe. It returns the number of inserted accounts.
func Seed(ctx context.Context, repo seedStore, hash func(string) (string, error), accounts []SeedAccount, log *zap.Logger) (int, error) {
	created := 0
	for _, a := range accounts {
		_, err := repo.GetByEmail(ctx, a.Email)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return created, err
		}
		pw, err := hash(a.Password)
		if err != nil {
			return created, fmt.Errorf("hash password for %s: %w", a.Email, err)
		}
		active := true
		if a.Active != nil {
			active = *a.Active
		}
		role := a.Role
		if role == "" {
			role = RoleModerator
		}
		u := User{
			Email:        a.Email,
			PasswordHash: pw,
			FirstName:    optional(a.FirstName),
			LastName:     optional(a.LastName),
			Role:         role,
			IsActive:     active,
		}
		if _, err := repo.Create(ctx, u); err != nil {
			return created, err
		}
		log.Info("seeded account", zap.String("email", NormalizeEmail(a.Email)), zap.String("role", u.Role))
		created++
	}
	return created, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
