package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goliatone/go-formflow/pkg/schema"
)

// ErrNotFound signals that no conversation exists under the requested ID.
var ErrNotFound = errors.New("session: conversation not found")

// Record is the persisted shape of one conversation: enough to rebuild a
// Session between stateless requests.
type Record struct {
	ConversationID string             `json:"conversation_id"`
	Model          string             `json:"model"`
	Values         map[string]any     `json:"values,omitempty"`
	Turns          []ConversationTurn `json:"turns,omitempty"`
	CompleteHint   bool               `json:"complete_hint"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// Store persists conversation records keyed by conversation ID.
type Store interface {
	Save(ctx context.Context, record Record) error
	Load(ctx context.Context, conversationID string) (Record, error)
	Delete(ctx context.Context, conversationID string) error
	Close() error
}

type memoryEntry struct {
	record    Record
	expiresAt time.Time
}

// MemoryStore keeps conversation records in an in-process map with periodic
// expiry cleanup. It is the fallback when no Redis URL is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]memoryEntry
	ttl    time.Duration
	stopCh chan struct{}
	once   sync.Once
}

// Ensure the implementation satisfies the interface.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an in-memory store. A zero ttl disables expiry; the
// cleanup loop only runs when entries can expire.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		data:   make(map[string]memoryEntry),
		ttl:    ttl,
		stopCh: make(chan struct{}),
	}
	if ttl > 0 {
		go s.cleanupLoop(ttl)
	}
	return s
}

func (s *MemoryStore) Save(ctx context.Context, record Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record.ConversationID == "" {
		return errors.New("session: conversation id is required")
	}

	entry := memoryEntry{record: cloneRecord(record)}
	if s.ttl > 0 {
		entry.expiresAt = time.Now().Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[record.ConversationID] = entry
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, conversationID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s.mu.RLock()
	entry, ok := s.data[conversationID]
	s.mu.RUnlock()

	if !ok {
		return Record{}, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && entry.expiresAt.Before(time.Now()) {
		return Record{}, ErrNotFound
	}
	return cloneRecord(entry.record), nil
}

func (s *MemoryStore) Delete(ctx context.Context, conversationID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, conversationID)
	return nil
}

// Close stops the cleanup loop. Safe to call more than once.
func (s *MemoryStore) Close() error {
	s.once.Do(func() {
		close(s.stopCh)
	})
	return nil
}

func (s *MemoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for id, entry := range s.data {
				if !entry.expiresAt.IsZero() && entry.expiresAt.Before(now) {
					delete(s.data, id)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

func cloneRecord(record Record) Record {
	out := record
	if record.Values != nil {
		out.Values = ValueMap(record.Values).Clone()
	}
	if len(record.Turns) > 0 {
		out.Turns = make([]ConversationTurn, len(record.Turns))
		copy(out.Turns, record.Turns)
	}
	return out
}

// RestoreSession rebuilds a live Session from a stored record and the schema
// it was collected against. Stored values already include seeded defaults, so
// replaying them over a fresh session is idempotent.
func RestoreSession(descriptor schema.SchemaDescriptor, record Record) *Session {
	s := New(descriptor, WithValues(record.Values), WithHistory(record.Turns))
	s.SetCompleteHint(record.CompleteHint)
	return s
}

// Snapshot captures the session's persistable state under one lock for
// storage between requests.
func Snapshot(s *Session, conversationID, model string) Record {
	return Record{
		ConversationID: conversationID,
		Model:          model,
		Values:         s.Values(),
		Turns:          s.Turns(),
		CompleteHint:   s.CompleteHint(),
		UpdatedAt:      time.Now().UTC(),
	}
}
