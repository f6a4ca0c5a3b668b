// Package identity owns the "users", "user-passwords" and "current-user-id"
// keys: registration, login, logout and the derived current user.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"motorhub-backend/internal/domain"
	"motorhub-backend/internal/infrastructure/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Service implements identity operations against a Store.
type Service struct {
	store      store.Store
	credential CredentialHasher
	sessionKey string
	now        func() time.Time
	newID      func() string
}

// NewService returns a Service whose session pointer lives at the default
// "current-user-id" key.
func NewService(s store.Store, hasher CredentialHasher) *Service {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	return &Service{
		store:      s,
		credential: hasher,
		sessionKey: store.KeyCurrentUserID,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// ForClient returns a view of s whose session pointer is scoped to clientID,
// so several clients sharing one store each hold their own session.
func (s *Service) ForClient(clientID string) *Service {
	c := *s
	if clientID != "" {
		c.sessionKey = store.KeyCurrentUserID + ":" + clientID
	}
	return &c
}

func (s *Service) users(ctx context.Context) (map[string]domain.User, error) {
	return store.Load(ctx, s.store, store.KeyUsers, map[string]domain.User{})
}

func findByEmail(users map[string]domain.User, email string) (domain.User, bool) {
	for _, u := range users {
		if u.Email == email {
			return u, true
		}
	}
	return domain.User{}, false
}

// Register creates a user, stores its credential and signs it in. A duplicate
// email (exact match) returns ErrEmailTaken without writing anything.
//
// The credential is written before the user record: the keys are not updated
// atomically together, and an interrupted registration then leaves an orphaned
// credential rather than a user who can never log in.
func (s *Service) Register(ctx context.Context, email, password, name string) (*domain.User, error) {
	users, err := s.users(ctx)
	if err != nil {
		return nil, err
	}
	if _, taken := findByEmail(users, email); taken {
		return nil, ErrEmailTaken
	}

	secret, err := s.credential.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash credential: %w", err)
	}
	user := domain.User{
		ID:        s.newID(),
		Email:     email,
		Name:      name,
		CreatedAt: s.now(),
	}

	if err := store.Mutate(ctx, s.store, store.KeyUserPasswords, func(m map[string]string) (map[string]string, error) {
		if m == nil {
			m = make(map[string]string)
		}
		m[user.ID] = secret
		return m, nil
	}); err != nil {
		return nil, err
	}

	// The email check is repeated inside the updater: another writer may have
	// registered the same address since the snapshot above was read.
	if err := store.Mutate(ctx, s.store, store.KeyUsers, func(m map[string]domain.User) (map[string]domain.User, error) {
		if m == nil {
			m = make(map[string]domain.User)
		}
		if _, taken := findByEmail(m, email); taken {
			return nil, ErrEmailTaken
		}
		m[user.ID] = user
		return m, nil
	}); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			s.dropCredential(ctx, user.ID)
		}
		return nil, err
	}

	if err := s.setSession(ctx, &user.ID); err != nil {
		return nil, err
	}
	log.Debug().Str("user_id", user.ID).Msg("identity: registered")
	return &user, nil
}

// Login signs in the user with email when password matches the stored
// credential. It returns false, with no side effect, otherwise.
func (s *Service) Login(ctx context.Context, email, password string) (bool, error) {
	users, err := s.users(ctx)
	if err != nil {
		return false, err
	}
	user, ok := findByEmail(users, email)
	if !ok {
		return false, nil
	}
	creds, err := store.Load(ctx, s.store, store.KeyUserPasswords, map[string]string{})
	if err != nil {
		return false, err
	}
	stored, ok := creds[user.ID]
	if !ok || !s.credential.Matches(stored, password) {
		return false, nil
	}
	if err := s.setSession(ctx, &user.ID); err != nil {
		return false, err
	}
	return true, nil
}

// Logout clears the session pointer unconditionally.
func (s *Service) Logout(ctx context.Context) error {
	return s.setSession(ctx, nil)
}

// CurrentUser resolves the session pointer. It returns nil when nobody is
// signed in or the pointer references a user that no longer exists.
func (s *Service) CurrentUser(ctx context.Context) (*domain.User, error) {
	id, err := s.CurrentUserID(ctx)
	if err != nil || id == "" {
		return nil, err
	}
	return s.UserByID(ctx, id)
}

// CurrentUserID returns the raw session pointer, "" when signed out.
func (s *Service) CurrentUserID(ctx context.Context) (string, error) {
	var none *string
	ptr, err := store.Load(ctx, s.store, s.sessionKey, none)
	if err != nil || ptr == nil {
		return "", err
	}
	return *ptr, nil
}

// UserByID returns the user with id, or nil.
func (s *Service) UserByID(ctx context.Context, id string) (*domain.User, error) {
	users, err := s.users(ctx)
	if err != nil {
		return nil, err
	}
	u, ok := users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *Service) dropCredential(ctx context.Context, userID string) {
	err := store.Mutate(ctx, s.store, store.KeyUserPasswords, func(m map[string]string) (map[string]string, error) {
		delete(m, userID)
		return m, nil
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("identity: orphaned credential left behind")
	}
}

func (s *Service) setSession(ctx context.Context, userID *string) error {
	return store.Save(ctx, s.store, s.sessionKey, userID)
}
