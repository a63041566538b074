package reconciliation

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// lockManager hands out one mutex per receivable id. Several ids are always
// locked in ascending order.
type lockManager struct {
	locks sync.Map // receivable id -> *sync.Mutex
}

func (m *lockManager) lock(ids ...uuid.UUID) (unlock func()) {
	keys := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		keys = append(keys, id)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	held := make([]*sync.Mutex, 0, len(keys))
	for _, id := range keys {
		v, _ := m.locks.LoadOrStore(id, &sync.Mutex{})
		mu := v.(*sync.Mutex)
		mu.Lock()
		held = append(held, mu)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
