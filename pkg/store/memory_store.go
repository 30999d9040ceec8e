package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"arview/pkg/domain"
)

// MemoryStore keeps records in-process. It backs tests and local runs.
type MemoryStore struct {
	mu     sync.RWMutex
	users  map[string]domain.User // key: user ID
	email  map[string]string      // email -> user ID
	items  map[string]domain.Item
	slugs  map[string]string // slug -> item ID
	orders []string          // item insertion order
	scans  map[string]domain.ScanEvent
	byItem map[string][]string // item ID -> scan IDs
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[string]domain.User),
		email:  make(map[string]string),
		items:  make(map[string]domain.Item),
		slugs:  make(map[string]string),
		scans:  make(map[string]domain.ScanEvent),
		byItem: make(map[string][]string),
	}
}

func (m *MemoryStore) CreateUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Email = normalizeEmail(u.Email)
	if _, ok := m.email[u.Email]; ok {
		return fmt.Errorf("%w: email %q", ErrDuplicateKey, u.Email)
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[normalizeEmail(email)]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) UserCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

func (m *MemoryStore) CreateItem(it domain.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slugs[it.Slug]; ok {
		return fmt.Errorf("%w: slug %q", ErrDuplicateKey, it.Slug)
	}
	m.items[it.ID] = it
	m.slugs[it.Slug] = it.ID
	m.orders = append(m.orders, it.ID)
	return nil
}

func (m *MemoryStore) UpdateItem(it domain.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.items[it.ID]
	if !ok {
		return nil
	}
	if owner, taken := m.slugs[it.Slug]; taken && owner != it.ID {
		return fmt.Errorf("%w: slug %q", ErrDuplicateKey, it.Slug)
	}
	delete(m.slugs, prev.Slug)
	it.MerchantID = prev.MerchantID
	it.CreatedAt = prev.CreatedAt
	m.items[it.ID] = it
	m.slugs[it.Slug] = it.ID
	return nil
}

func (m *MemoryStore) GetItem(id string) (domain.Item, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	return it, ok, nil
}

func (m *MemoryStore) GetItemBySlug(slug string) (domain.Item, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.slugs[slug]
	if !ok {
		return domain.Item{}, false, nil
	}
	it, ok := m.items[id]
	return it, ok, nil
}

func (m *MemoryStore) SlugExists(slug, excludeID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.slugs[slug]
	if !ok {
		return false, nil
	}
	return id != excludeID, nil
}

// ListItemsByMerchant returns items newest first; equal timestamps keep
// insertion order.
func (m *MemoryStore) ListItemsByMerchant(merchantID string) ([]domain.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Item, 0)
	for _, id := range m.orders {
		if it, ok := m.items[id]; ok && it.MerchantID == merchantID {
			res = append(res, it)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

func (m *MemoryStore) DeleteItem(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil
	}
	for _, scanID := range m.byItem[id] {
		delete(m.scans, scanID)
	}
	delete(m.byItem, id)
	delete(m.slugs, it.Slug)
	delete(m.items, id)
	for i, existing := range m.orders {
		if existing == id {
			m.orders = append(m.orders[:i], m.orders[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryStore) CreateScanEvent(e domain.ScanEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[e.ItemID]; !ok {
		return fmt.Errorf("scan event references unknown item %q", e.ItemID)
	}
	m.scans[e.ID] = e
	m.byItem[e.ItemID] = append(m.byItem[e.ItemID], e.ID)
	return nil
}

func (m *MemoryStore) SetScanDuration(id string, duration int) (domain.ScanEvent, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.scans[id]
	if !ok {
		return domain.ScanEvent{}, false, nil
	}
	e.Duration = duration
	m.scans[id] = e
	return e, true, nil
}

func (m *MemoryStore) ListScanEventsByItem(itemID string) ([]domain.ScanEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.byItem[itemID]
	res := make([]domain.ScanEvent, 0, len(ids))
	for _, id := range ids {
		res = append(res, m.scans[id])
	}
	return res, nil
}

func (m *MemoryStore) CountScansByItem(itemIDs []string) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int, len(itemIDs))
	for _, id := range itemIDs {
		if n := len(m.byItem[id]); n > 0 {
			out[id] = n
		}
	}
	return out, nil
}

func (m *MemoryStore) CountScansSince(itemIDs []string, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, id := range itemIDs {
		for _, scanID := range m.byItem[id] {
			if !m.scans[scanID].CreatedAt.Before(since) {
				n++
			}
		}
	}
	return n, nil
}
