package cache

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"
)

// memoryStore is an in-process KVStore used by tests and local development.
// TTLs are enforced lazily on access.
type memoryStore struct {
	mu      sync.Mutex
	strings map[string][]byte
	lists   map[string][]string
	zsets   map[string]map[string]float64
	expiry  map[string]time.Time
	now     func() time.Time
}

func NewMemoryStore() KVStore {
	return &memoryStore{
		strings: make(map[string][]byte),
		lists:   make(map[string][]string),
		zsets:   make(map[string]map[string]float64),
		expiry:  make(map[string]time.Time),
		now:     time.Now,
	}
}

// NewMemoryStoreWithClock is the test constructor; the clock controls TTL
// expiry decisions.
func NewMemoryStoreWithClock(now func() time.Time) KVStore {
	return &memoryStore{
		strings: make(map[string][]byte),
		lists:   make(map[string][]string),
		zsets:   make(map[string]map[string]float64),
		expiry:  make(map[string]time.Time),
		now:     now,
	}
}

// evictLocked drops the key if its TTL has passed. Callers hold mu.
func (m *memoryStore) evictLocked(key string) {
	if exp, ok := m.expiry[key]; ok && m.now().After(exp) {
		delete(m.strings, key)
		delete(m.lists, key)
		delete(m.zsets, key)
		delete(m.expiry, key)
	}
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked(key)
	b, ok := m.strings[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (m *memoryStore) Set(ctx context.Context, key string, value interface{}) error {
	return m.SetEx(ctx, key, value, 0)
}

func (m *memoryStore) SetEx(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encodeValue(key, value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strings[key] = data
	if ttl > 0 {
		m.expiry[key] = m.now().Add(ttl)
	} else {
		delete(m.expiry, key)
	}
	return nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.strings, key)
	delete(m.lists, key)
	delete(m.zsets, key)
	delete(m.expiry, key)
	return nil
}

func (m *memoryStore) Incr(_ context.Context, key string, n int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked(key)
	var cur int64
	if b, ok := m.strings[key]; ok {
		v, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value at %s is not an integer", key)
		}
		cur = v
	}
	cur += n
	m.strings[key] = []byte(strconv.FormatInt(cur, 10))
	return cur, nil
}

func (m *memoryStore) LPush(_ context.Context, key string, values ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked(key)
	// LPUSH prepends values one at a time, so the last value ends up first.
	list := m.lists[key]
	for _, v := range values {
		list = append([]string{v}, list...)
	}
	m.lists[key] = list
	return nil
}

func (m *memoryStore) LTrim(_ context.Context, key string, start, stop int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked(key)
	list := m.lists[key]
	n := int64(len(list))
	if start < 0 {
		start = n + start
	}
	if stop < 0 {
		stop = n + stop
	}
	if start < 0 {
		start = 0
	}
	if start >= n || start > stop {
		m.lists[key] = nil
		return nil
	}
	if stop >= n {
		stop = n - 1
	}
	m.lists[key] = list[start : stop+1]
	return nil
}

func (m *memoryStore) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked(key)
	list := m.lists[key]
	n := int64(len(list))
	if start < 0 {
		start = n + start
	}
	if stop < 0 {
		stop = n + stop
	}
	if start < 0 {
		start = 0
	}
	if start >= n || start > stop {
		return nil, nil
	}
	if stop >= n {
		stop = n - 1
	}
	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out, nil
}

func (m *memoryStore) ZAdd(_ context.Context, key string, score float64, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked(key)
	set, ok := m.zsets[key]
	if !ok {
		set = make(map[string]float64)
		m.zsets[key] = set
	}
	set[member] = score
	return nil
}

func (m *memoryStore) ZCard(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked(key)
	return int64(len(m.zsets[key])), nil
}

func (m *memoryStore) ZRemRangeByScore(_ context.Context, key string, min, max float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked(key)
	set := m.zsets[key]
	var victims []string
	for member, score := range set {
		if score >= min && score <= max {
			victims = append(victims, member)
		}
	}
	sort.Strings(victims)
	for _, v := range victims {
		delete(set, v)
	}
	return nil
}

func (m *memoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expiry[key] = m.now().Add(ttl)
	return nil
}

func (m *memoryStore) HealthCheck(_ context.Context) error {
	return nil
}
