// Package session keeps per-user working state: the selected domain, the
// loaded dataset and the latest trained model.
package session

import (
	"container/list"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/fraudguard/internal/dataset"
	"github.com/opensource-finance/fraudguard/internal/domain"
	"github.com/opensource-finance/fraudguard/internal/model"
)

// Session is a snapshot of one user's working state. Values returned by
// the Store are copies; change them through Store methods.
type Session struct {
	ID     string          `json:"id"`
	Domain domain.DomainID `json:"domain"`

	// Table is the dataset currently loaded, nil until one is loaded.
	Table  *dataset.Table `json:"-"`
	Source string         `json:"source,omitempty"`

	// Model is the latest successful training result. A new run replaces it.
	Model   *model.TrainedModel `json:"-"`
	Metrics *domain.Metrics     `json:"metrics,omitempty"`
	RunID   string              `json:"runId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasModel reports whether a trained model is attached.
func (s *Session) HasModel() bool { return s.Model != nil }

// Store is a thread-safe, capacity bounded session store. Idle sessions
// expire after the TTL; when full, the least recently used one is evicted.
type Store struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	items    map[string]*list.Element
	order    *list.List
	now      func() time.Time
}

type entry struct {
	session   Session
	expiresAt time.Time
}

// NewStore creates a store. Non-positive values select 2h and 64 sessions.
func NewStore(ttl time.Duration, capacity int) *Store {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	if capacity <= 0 {
		capacity = 64
	}
	return &Store{
		ttl:      ttl,
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

// NewStoreFromConfig creates a store from the session section.
func NewStoreFromConfig(cfg domain.SessionConfig) *Store {
	return NewStore(cfg.TTL, cfg.MaxSessions)
}

// Create starts a session for the given domain.
func (st *Store) Create(id domain.DomainID) (Session, error) {
	if !id.Valid() {
		return Session{}, fmt.Errorf("%w: %q", domain.ErrUnknownDomain, id)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now().UTC()
	s := Session{
		ID:        uuid.New().String(),
		Domain:    id,
		CreatedAt: now,
		UpdatedAt: now,
	}
	st.items[s.ID] = st.order.PushFront(&entry{session: s, expiresAt: now.Add(st.ttl)})

	for st.order.Len() > st.capacity {
		old := st.order.Back()
		slog.Info("session evicted", "session_id", old.Value.(*entry).session.ID, "reason", "capacity")
		st.remove(old)
	}
	return s, nil
}

// Get returns a snapshot of the session and refreshes its TTL.
func (st *Store) Get(id string) (Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	e, err := st.touch(id)
	if err != nil {
		return Session{}, err
	}
	return e.session, nil
}

// SetDomain switches the session's domain. The dataset is kept but any
// trained model is discarded since its schema no longer applies.
func (st *Store) SetDomain(id string, d domain.DomainID) (Session, error) {
	if !d.Valid() {
		return Session{}, fmt.Errorf("%w: %q", domain.ErrUnknownDomain, d)
	}
	return st.update(id, func(s *Session) error {
		if s.Domain != d {
			s.Domain = d
			s.clearModel()
		}
		return nil
	})
}

// SetDataset replaces the session's table and discards the trained model.
func (st *Store) SetDataset(id string, t *dataset.Table, source string) (Session, error) {
	return st.update(id, func(s *Session) error {
		s.Table = t
		s.Source = source
		s.clearModel()
		return nil
	})
}

// SetModel attaches a training result, superseding the previous one. The
// model must have been trained for the session's current domain.
func (st *Store) SetModel(id string, m *model.TrainedModel, metrics *domain.Metrics, runID string) (Session, error) {
	if m == nil {
		return Session{}, domain.ErrModelNotFitted
	}
	return st.update(id, func(s *Session) error {
		if m.Domain() == nil || m.Domain().ID != s.Domain {
			return fmt.Errorf("%w: model trained for another domain", domain.ErrSchemaMismatch)
		}
		s.Model = m
		s.Metrics = metrics
		s.RunID = runID
		return nil
	})
}

// Delete removes a session. Unknown ids return ErrSessionNotFound.
func (st *Store) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	elem, ok := st.items[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	st.remove(elem)
	return nil
}

// Sweep removes expired sessions and returns how many were dropped.
func (st *Store) Sweep() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	now := st.now()
	n := 0
	for elem := st.order.Back(); elem != nil; {
		prev := elem.Prev()
		if now.After(elem.Value.(*entry).expiresAt) {
			st.remove(elem)
			n++
		}
		elem = prev
	}
	return n
}

// Len returns the number of live sessions, expired ones included until
// the next Sweep.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.order.Len()
}

func (s *Session) clearModel() {
	s.Model = nil
	s.Metrics = nil
	s.RunID = ""
}

func (st *Store) update(id string, fn func(*Session) error) (Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	e, err := st.touch(id)
	if err != nil {
		return Session{}, err
	}
	next := e.session
	if err := fn(&next); err != nil {
		return Session{}, err
	}
	next.UpdatedAt = st.now().UTC()
	e.session = next
	return next, nil
}

// touch must be called with st.mu held.
func (st *Store) touch(id string) (*entry, error) {
	elem, ok := st.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	e := elem.Value.(*entry)
	now := st.now()
	if now.After(e.expiresAt) {
		st.remove(elem)
		return nil, fmt.Errorf("%w: %s expired", domain.ErrSessionNotFound, id)
	}
	e.expiresAt = now.Add(st.ttl)
	st.order.MoveToFront(elem)
	return e, nil
}

func (st *Store) remove(elem *list.Element) {
	st.order.Remove(elem)
	delete(st.items, elem.Value.(*entry).session.ID)
}
