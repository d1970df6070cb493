package service

import (
	"context"
	"sync"
	"time"

	"centerequity/portal/internal/mail"
	"centerequity/portal/internal/models"
	"centerequity/portal/internal/repository"
)

// memoryUserStore mirrors the Postgres repository semantics,
// including compare-and-clear token consumption.
type memoryUserStore struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{users: make(map[string]models.User)}
}

func (s *memoryUserStore) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == user.Username {
			return repository.ErrDuplicateUsername
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *memoryUserStore) GetByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (s *memoryUserStore) FindByUsername(_ context.Context, username string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Username == username {
			return user, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func applyUpdate(user models.User, upd models.ProfileUpdate) models.User {
	if upd.FirstName != nil {
		user.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		user.LastName = *upd.LastName
	}
	if upd.Username != nil {
		user.Username = *upd.Username
	}
	if upd.Rank != nil {
		user.Rank = *upd.Rank
	}
	if upd.Subscribe != nil {
		user.Subscribe = *upd.Subscribe
	}
	return user
}

func (s *memoryUserStore) usernameTaken(username string, exceptID string) bool {
	for _, user := range s.users {
		if user.ID != exceptID && user.Username == username {
			return true
		}
	}
	return false
}

func (s *memoryUserStore) UpdateProfile(_ context.Context, id string, upd models.ProfileUpdate) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	if upd.Username != nil && s.usernameTaken(*upd.Username, id) {
		return models.User{}, repository.ErrDuplicateUsername
	}
	user = applyUpdate(user, upd)
	s.users[id] = user
	return user, nil
}

func (s *memoryUserStore) TouchLogin(_ context.Context, id string, now time.Time) (models.LastLogin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.LastLogin{}, repository.ErrUserNotFound
	}
	user.LastLogin = models.NextLogin(user.LastLogin, now)
	s.users[id] = user
	return user.LastLogin, nil
}

func (s *memoryUserStore) SetResetToken(_ context.Context, id string, token string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.ResetToken = &token
	user.ResetExpires = &expires
	s.users[id] = user
	return nil
}

func (s *memoryUserStore) findByLiveToken(token string, now time.Time) (models.User, bool) {
	for _, user := range s.users {
		if user.ResetToken != nil && *user.ResetToken == token &&
			user.ResetExpires != nil && user.ResetExpires.After(now) {
			return user, true
		}
	}
	return models.User{}, false
}

func (s *memoryUserStore) FindByResetToken(_ context.Context, token string, now time.Time) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.findByLiveToken(token, now)
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (s *memoryUserStore) ConsumeResetPassword(_ context.Context, token string, now time.Time, passwordHash []byte) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.findByLiveToken(token, now)
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	user.ResetToken = nil
	user.ResetExpires = nil
	s.users[user.ID] = user
	return user, nil
}

func (s *memoryUserStore) ConsumeResetProfile(_ context.Context, token string, now time.Time, upd models.ProfileUpdate) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.findByLiveToken(token, now)
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	if upd.Username != nil && s.usernameTaken(*upd.Username, user.ID) {
		// statement aborts, token untouched
		return models.User{}, repository.ErrDuplicateUsername
	}
	user = applyUpdate(user, upd)
	user.ResetToken = nil
	user.ResetExpires = nil
	s.users[user.ID] = user
	return user, nil
}

func (s *memoryUserStore) ListNonAdmin(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var users []models.User
	for _, user := range s.users {
		if !user.IsAdmin() {
			users = append(users, user)
		}
	}
	return users, nil
}

func (s *memoryUserStore) DeleteNonAdmin(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, user := range s.users {
		if !user.IsAdmin() {
			delete(s.users, id)
			deleted++
		}
	}
	return deleted, nil
}

type memorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]models.Session
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{sessions: make(map[string]models.Session)}
}

func (s *memorySessionStore) Create(_ context.Context, session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *memorySessionStore) GetByID(_ context.Context, id string) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return models.Session{}, repository.ErrSessionNotFound
	}
	return session, nil
}

func (s *memorySessionStore) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

type memoryVisitStore struct {
	mu        sync.Mutex
	entries   []models.VisitEntry
	createErr error
}

func (s *memoryVisitStore) Create(_ context.Context, entry models.VisitEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memoryVisitStore) ListAll(_ context.Context) ([]models.VisitEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.VisitEntry(nil), s.entries...), nil
}

func (s *memoryVisitStore) ListByAuthor(_ context.Context, authorID string) ([]models.VisitEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []models.VisitEntry
	for _, entry := range s.entries {
		if entry.AuthorID == authorID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (s *memoryVisitStore) DeleteAll(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := int64(len(s.entries))
	s.entries = nil
	return deleted, nil
}

type fakeMailer struct {
	mu      sync.Mutex
	sent    []mail.Message
	sendErr error
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fakeSink struct {
	keys   []string
	bodies []string
}

func (s *fakeSink) PutSubscriberExport(_ context.Context, key string, body string) error {
	s.keys = append(s.keys, key)
	s.bodies = append(s.bodies, body)
	return nil
}
