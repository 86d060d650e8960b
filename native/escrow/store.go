package escrow

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"escrowd/storage"
)

var recordKeyPrefix = []byte("escrow/record/")

func recordKey(addr string) []byte {
	return append(append([]byte(nil), recordKeyPrefix...), addr...)
}

// Store holds exactly one Record per contract address on top of a key-value
// database. It owns the per-address serialization discipline: at most one
// transition is in flight for a given address at any time, while distinct
// addresses proceed fully independently.
type Store struct {
	db storage.Database

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore wraps the supplied database. The store does not take ownership of
// the database lifecycle; callers close it.
func NewStore(db storage.Database) *Store {
	return &Store{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *Store) addrLock(addr string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[addr]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[addr] = lock
	}
	return lock
}

// Create persists a fresh record unless one already exists for the address.
// The boolean reports whether the record was created; when false the existing
// record is returned unchanged so the caller can compare definitions.
func (s *Store) Create(rec *Record) (*Record, bool, error) {
	sanitized, err := SanitizeRecord(rec)
	if err != nil {
		return nil, false, err
	}
	lock := s.addrLock(sanitized.ContractAddress)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.load(sanitized.ContractAddress)
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, ErrNotFound):
		return nil, false, err
	}
	if err := s.persist(sanitized); err != nil {
		return nil, false, err
	}
	return sanitized.Clone(), true, nil
}

// Get returns a copy of the record stored for the address.
func (s *Store) Get(addr string) (*Record, error) {
	lock := s.addrLock(addr)
	lock.Lock()
	defer lock.Unlock()
	return s.load(addr)
}

// Put atomically replaces the record stored for its address. Intended for
// reconciliation tooling; engine transitions go through Mutate.
func (s *Store) Put(rec *Record) error {
	sanitized, err := SanitizeRecord(rec)
	if err != nil {
		return err
	}
	lock := s.addrLock(sanitized.ContractAddress)
	lock.Lock()
	defer lock.Unlock()
	return s.persist(sanitized)
}

// Mutate loads the record under its address lock, hands a clone to fn and
// persists the clone only when fn succeeds. The lock is held for the whole
// transition, including any external ledger call made inside fn, so a failure
// at any point leaves the stored record untouched and the operation
// retryable. Returns the persisted record.
func (s *Store) Mutate(addr string, fn func(*Record) error) (*Record, error) {
	lock := s.addrLock(addr)
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.load(addr)
	if err != nil {
		return nil, err
	}
	if err := fn(rec); err != nil {
		return nil, err
	}
	sanitized, err := SanitizeRecord(rec)
	if err != nil {
		return nil, err
	}
	if err := s.persist(sanitized); err != nil {
		return nil, err
	}
	return sanitized, nil
}

func (s *Store) load(addr string) (*Record, error) {
	raw, err := s.db.Get(recordKey(addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, addr)
	}
	if err != nil {
		return nil, fmt.Errorf("load escrow %s: %w", addr, err)
	}
	rec := new(Record)
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("decode escrow %s: %w", addr, err)
	}
	return SanitizeRecord(rec)
}

func (s *Store) persist(rec *Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode escrow %s: %w", rec.ContractAddress, err)
	}
	if err := s.db.Put(recordKey(rec.ContractAddress), raw); err != nil {
		return fmt.Errorf("persist escrow %s: %w", rec.ContractAddress, err)
	}
	return nil
}
