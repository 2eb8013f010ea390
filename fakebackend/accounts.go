package fakebackend

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/bookclub-admin/auth"
	"github.com/jrsteele09/bookclub-admin/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

var (
	errAccountNotFound = errors.New("account not found")
	errAccountExists   = errors.New("account already exists")
)

// account is a librarian with the password hash that never leaves the backend.
type account struct {
	user         auth.User
	passwordHash string
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// accountStore keeps librarians indexed by id, with name and email lookups.
type accountStore struct {
	lock     sync.RWMutex
	accounts map[string]*account
	nameIDs  map[string]string // lower-cased name to id
	emailIDs map[string]string // lower-cased email to id
}

func newAccountStore() *accountStore {
	return &accountStore{
		accounts: make(map[string]*account),
		nameIDs:  make(map[string]string),
		emailIDs: make(map[string]string),
	}
}

func (s *accountStore) create(name, email, password string, now time.Time) (auth.User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return auth.User{}, err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.nameIDs[strings.ToLower(name)]; ok {
		return auth.User{}, errAccountExists
	}
	if _, ok := s.emailIDs[strings.ToLower(email)]; ok {
		return auth.User{}, errAccountExists
	}

	a := &account{
		user: auth.User{
			ID:        uuid.New().String(),
			Name:      name,
			Email:     email,
			Role:      auth.RoleLibrarian,
			CreatedAt: now,
			UpdatedAt: now,
		},
		passwordHash: hash,
	}
	s.accounts[a.user.ID] = a
	s.nameIDs[strings.ToLower(name)] = a.user.ID
	s.emailIDs[strings.ToLower(email)] = a.user.ID
	return a.user, nil
}

// authenticate returns the user whose name and password match.
func (s *accountStore) authenticate(name, password string) (auth.User, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	id, ok := s.nameIDs[strings.ToLower(name)]
	if !ok {
		return auth.User{}, false
	}
	a := s.accounts[id]
	if !CheckPasswordHash(password, a.passwordHash) {
		return auth.User{}, false
	}
	return a.user, true
}

func (s *accountStore) get(id string) (auth.User, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return auth.User{}, errAccountNotFound
	}
	return a.user, nil
}

func (s *accountStore) idByEmail(email string) (string, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	id, ok := s.emailIDs[strings.ToLower(email)]
	return id, ok
}

func (s *accountStore) update(id string, update auth.ProfileUpdate, now time.Time) (auth.User, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return auth.User{}, errAccountNotFound
	}
	if name := utils.Value(update.Name); name != "" && !strings.EqualFold(name, a.user.Name) {
		if _, taken := s.nameIDs[strings.ToLower(name)]; taken {
			return auth.User{}, errAccountExists
		}
		delete(s.nameIDs, strings.ToLower(a.user.Name))
		a.user.Name = name
		s.nameIDs[strings.ToLower(a.user.Name)] = id
	}
	if email := utils.Value(update.Email); email != "" && !strings.EqualFold(email, a.user.Email) {
		if _, taken := s.emailIDs[strings.ToLower(email)]; taken {
			return auth.User{}, errAccountExists
		}
		delete(s.emailIDs, strings.ToLower(a.user.Email))
		a.user.Email = email
		s.emailIDs[strings.ToLower(a.user.Email)] = id
	}
	a.user.UpdatedAt = now
	return a.user, nil
}

// checkPassword reports whether password matches the account's current one.
func (s *accountStore) checkPassword(id, password string) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	a, ok := s.accounts[id]
	return ok && CheckPasswordHash(password, a.passwordHash)
}

func (s *accountStore) setPassword(id, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return errAccountNotFound
	}
	a.passwordHash = hash
	return nil
}
