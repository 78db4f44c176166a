package endpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/jpillora/sizestr"
)

// chunkSize (16 MiB) scales the cap on a /set request body: handleSet
// reads at most 64 chunks plus one byte of the body into memory in one
// piece. Bodies are not streamed chunk by chunk.
const chunkSize = 16 << 20

// ErrObjectTooLarge is returned by Put when data exceeds the storage's
// configured maximum single-object size.
type ErrObjectTooLarge struct {
	Size, Max int64
}

func (e *ErrObjectTooLarge) Error() string {
	return fmt.Sprintf("endpoint: object of %s exceeds the %s limit", sizestr.ToString(e.Size), sizestr.ToString(e.Max))
}

// Storage is the endpoint daemon's local object store: an in-memory map
// with optional spill-to-disk for objects once the in-memory budget is
// exhausted, evicted oldest-put-first. A max single-object size bounds any
// one Put regardless of remaining budget.
type Storage struct {
	mu           sync.Mutex
	dir          string // "" disables disk spill
	maxObject    int64
	maxTotal     int64 // 0 means unbounded
	usedBytes    int64
	order        []string // insertion order, for oldest-first eviction
	memory       map[string][]byte
	onDisk       map[string]string // id -> file path
}

// NewStorage creates a Storage. dir, if non-empty, is used for spilled
// objects and created if missing. maxObject bounds a single Put; maxTotal
// bounds memory-resident bytes before spilling (0 = unbounded, never
// spills).
func NewStorage(dir string, maxObject, maxTotal int64) (*Storage, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("endpoint: creating storage dir: %w", err)
		}
	}
	return &Storage{
		dir:       dir,
		maxObject: maxObject,
		maxTotal:  maxTotal,
		memory:    make(map[string][]byte),
		onDisk:    make(map[string]string),
	}, nil
}

// Put stores data under a newly allocated object id.
func (s *Storage) Put(data []byte) (string, error) {
	if s.maxObject > 0 && int64(len(data)) > s.maxObject {
		return "", &ErrObjectTooLarge{Size: int64(len(data)), Max: s.maxObject}
	}
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.memory[id] = append([]byte(nil), data...)
	s.usedBytes += int64(len(data))
	s.order = append(s.order, id)
	s.evictToBudgetLocked()
	return id, nil
}

// evictToBudgetLocked spills the oldest memory-resident objects to disk
// until usedBytes is within maxTotal. Called with s.mu held.
func (s *Storage) evictToBudgetLocked() {
	if s.maxTotal <= 0 || s.dir == "" {
		return
	}
	for i := 0; i < len(s.order) && s.usedBytes > s.maxTotal; i++ {
		id := s.order[i]
		data, ok := s.memory[id]
		if !ok {
			continue
		}
		path := filepath.Join(s.dir, id)
		if err := os.WriteFile(path, data, 0o600); err != nil {
			continue
		}
		delete(s.memory, id)
		s.onDisk[id] = path
		s.usedBytes -= int64(len(data))
	}
}

// Get returns the bytes stored under id, or (nil, false) if absent.
func (s *Storage) Get(id string) ([]byte, bool, error) {
	s.mu.Lock()
	data, ok := s.memory[id]
	path, onDisk := s.onDisk[id]
	s.mu.Unlock()
	if ok {
		return append([]byte(nil), data...), true, nil
	}
	if onDisk {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, false, fmt.Errorf("endpoint: reading spilled object: %w", err)
		}
		return data, true, nil
	}
	return nil, false, nil
}

// Exists reports presence without reading the object's bytes.
func (s *Storage) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memory[id]; ok {
		return true
	}
	_, ok := s.onDisk[id]
	return ok
}

// Evict idempotently removes id.
func (s *Storage) Evict(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if data, ok := s.memory[id]; ok {
		s.usedBytes -= int64(len(data))
		delete(s.memory, id)
	}
	if path, ok := s.onDisk[id]; ok {
		delete(s.onDisk, id)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("endpoint: evicting spilled object: %w", err)
		}
	}
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}
