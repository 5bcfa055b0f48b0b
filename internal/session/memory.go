package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/profile-cli/internal/model"
)

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryStore implements Store in process memory. Profiles are kept as JSON so
// readers never share maps with the writer.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates a MemoryStore. A non-positive ttl uses DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) SaveProfile(_ context.Context, sessionID string, profile model.CompanyProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return eris.Wrap(err, "session: marshal profile")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[profileKey(sessionID)] = memoryEntry{data: data, expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) GetProfile(_ context.Context, sessionID string) (model.CompanyProfile, error) {
	key := profileKey(sessionID)
	s.mu.Lock()
	e, ok := s.entries[key]
	if ok && !s.now().Before(e.expires) {
		delete(s.entries, key)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	var profile model.CompanyProfile
	if err := json.Unmarshal(e.data, &profile); err != nil {
		return nil, eris.Wrapf(err, "session: decode profile %s", sessionID)
	}
	return profile, nil
}

func (s *MemoryStore) ClearProfile(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, profileKey(sessionID))
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
