package lib

// BoundMap is a keyed map holding at most capacity entries. Inserting a new key
// into a full map evicts the oldest one. Not safe for concurrent use
type BoundMap[T any] struct {
	capacity int
	order    []string
	items    map[string]T
}

func NewBoundMap[T any](capacity int) *BoundMap[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &BoundMap[T]{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		items:    make(map[string]T, capacity),
	}
}

// Put replaces the value of an existing key in place
func (m *BoundMap[T]) Put(key string, item T) {
	if _, ok := m.items[key]; ok {
		m.items[key] = item
		return
	}
	if len(m.order) == m.capacity {
		delete(m.items, m.order[0])
		m.order = m.order[1:]
	}
	m.order = append(m.order, key)
	m.items[key] = item
}

func (m *BoundMap[T]) Get(key string) (T, bool) {
	item, ok := m.items[key]
	return item, ok
}

func (m *BoundMap[T]) Len() int {
	return len(m.order)
}

// Keys are returned oldest first
func (m *BoundMap[T]) Keys() []string {
	return append([]string{}, m.order...)
}
