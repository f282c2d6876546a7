package user

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/cryptomind/analyst/models"
)

// FileStore keeps entitlements in a JSON file mapping user id to record,
// the same layout the bot has always used for users.json, so existing
// files load unchanged. A single mutex serializes every operation, which
// makes per-user updates trivially linearizable; writes go through a temp
// file and rename so a crash never leaves a half-written store.
type FileStore struct {
	path      string
	freeLimit int

	mu    sync.Mutex
	users map[string]*models.UserEntitlement
}

// NewFileStore loads the file if it exists, otherwise starts empty.
func NewFileStore(path string, freeLimit int) (*FileStore, error) {
	s := &FileStore{
		path:      path,
		freeLimit: freeLimit,
		users:     make(map[string]*models.UserEntitlement),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("%w: reading %s: %v", models.ErrPersistence, path, err)
	}

	if err := json.Unmarshal(data, &s.users); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", models.ErrPersistence, path, err)
	}
	for key, u := range s.users {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad user id %q in %s", models.ErrPersistence, key, path)
		}
		u.ID = id
	}
	return s, nil
}

// save writes the whole map. Caller holds the mutex.
func (s *FileStore) save() error {
	data, err := json.MarshalIndent(s.users, "", "    ")
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: writing %s: %v", models.ErrPersistence, tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("%w: replacing %s: %v", models.ErrPersistence, s.path, err)
	}
	return nil
}

func (s *FileStore) GetOrCreate(_ context.Context, id int64, name, username string) (*models.UserEntitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strconv.FormatInt(id, 10)
	if u, ok := s.users[key]; ok {
		copied := *u
		return &copied, nil
	}

	u := &models.UserEntitlement{
		ID:       id,
		Name:     name,
		Username: username,
	}
	s.users[key] = u
	if err := s.save(); err != nil {
		delete(s.users, key)
		return nil, err
	}

	copied := *u
	return &copied, nil
}

func (s *FileStore) IsAuthorized(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[strconv.FormatInt(id, 10)]
	if !ok {
		return s.freeLimit > 0, nil
	}
	return u.Subscribed || u.AnalysisUsed < s.freeLimit, nil
}

func (s *FileStore) DebitOnSuccess(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[strconv.FormatInt(id, 10)]
	if !ok || u.Subscribed {
		return nil
	}
	u.AnalysisUsed++
	if err := s.save(); err != nil {
		u.AnalysisUsed--
		return err
	}
	return nil
}

func (s *FileStore) Activate(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[strconv.FormatInt(id, 10)]
	if !ok {
		return models.ErrUserNotFound
	}
	if u.Subscribed {
		return nil
	}
	u.Subscribed = true
	if err := s.save(); err != nil {
		u.Subscribed = false
		return err
	}
	return nil
}

func (s *FileStore) ListAll(_ context.Context) ([]models.UserEntitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]models.UserEntitlement, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *FileStore) Close() error {
	return nil
}
