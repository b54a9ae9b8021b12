package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abefas/todoboard/database"
	"github.com/abefas/todoboard/models"
	"github.com/google/uuid"
)

// maxPasswordBytes is bcrypt's input limit.
const maxPasswordBytes = 72

// UserStore owns the user collection.
type UserStore struct {
	users  database.Collection[models.User]
	hasher *PasswordHasher
	now    func() time.Time
}

// NewUserStore creates a UserStore over the given collection.
func NewUserStore(users database.Collection[models.User], hasher *PasswordHasher) *UserStore {
	if hasher == nil {
		hasher = NewPasswordHasher(DefaultBcryptCost)
	}
	return &UserStore{users: users, hasher: hasher, now: time.Now}
}

// GetAll returns every user.
func (s *UserStore) GetAll(ctx context.Context) ([]models.User, error) {
	return s.users.Load(ctx)
}

// FindByUsername looks a user up case-insensitively.
func (s *UserStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	all, err := s.users.Load(ctx)
	if err != nil {
		return nil, err
	}
	if i := indexByUsername(all, username); i >= 0 {
		return &all[i], nil
	}
	return nil, ErrNotFound
}

// FindByID looks a user up by id.
func (s *UserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	all, err := s.users.Load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, ErrNotFound
}

// CreateUser registers a new account. The uniqueness check and the append
// happen in one update cycle.
func (s *UserStore) CreateUser(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, &ValidationError{Field: "username", Reason: "required"}
	}
	if password == "" {
		return nil, &ValidationError{Field: "password", Reason: "required"}
	}
	if len(password) > maxPasswordBytes {
		return nil, &ValidationError{Field: "password", Reason: "must be at most 72 bytes"}
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var created models.User
	err = s.users.Update(ctx, func(all []models.User) ([]models.User, bool, error) {
		if indexByUsername(all, username) >= 0 {
			return nil, false, ErrDuplicateUsername
		}
		created = models.User{
			ID:           uuid.New().String(),
			Username:     username,
			PasswordHash: passwordHash,
			CreatedAt:    s.now().UTC(),
		}
		return append(all, created), true, nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// ValidateUser returns the user only when the password matches. An unknown
// username and a wrong password both yield ErrInvalidCredentials.
func (s *UserStore) ValidateUser(ctx context.Context, username, password string) (*models.User, error) {
	all, err := s.users.Load(ctx)
	if err != nil {
		return nil, err
	}
	i := indexByUsername(all, username)
	if i < 0 {
		s.hasher.burn(password, sampleHash(all))
		return nil, ErrInvalidCredentials
	}
	user := &all[i]
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// DeleteUser removes the user record only; callers own the cascade to tasks.
func (s *UserStore) DeleteUser(ctx context.Context, id string) (bool, error) {
	removed := false
	err := s.users.Update(ctx, func(all []models.User) ([]models.User, bool, error) {
		next := all[:0]
		for _, u := range all {
			if u.ID == id {
				removed = true
				continue
			}
			next = append(next, u)
		}
		return next, removed, nil
	})
	return removed, err
}

// sampleHash returns a stored hash to take the bcrypt cost from, or "" when
// there are no users.
func sampleHash(all []models.User) string {
	if len(all) == 0 {
		return ""
	}
	return all[0].PasswordHash
}

func indexByUsername(all []models.User, username string) int {
	for i := range all {
		if strings.EqualFold(all[i].Username, strings.TrimSpace(username)) {
			return i
		}
	}
	return -1
}
