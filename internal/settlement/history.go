package settlement

import (
	"sync"
	"time"

	"github.com/gammazero/deque"
)

const DefaultHistorySize = 10

type AttemptStatus string

const (
	AttemptConfirmed AttemptStatus = "CONFIRMED"
	AttemptSubmitted AttemptStatus = "SUBMITTED"
	AttemptFailed    AttemptStatus = "FAILED"
)

type HistoryItem struct {
	Action        Action        `json:"type"`
	Seller        string        `json:"seller"`
	TransactionID string        `json:"transaction_id"`
	Status        AttemptStatus `json:"status"`
	TxHash        string        `json:"tx_hash,omitempty"`
	Error         string        `json:"error,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// History keeps the most recent settlement attempts. When full, the oldest item is dropped
type History struct {
	data *deque.Deque[HistoryItem]
	cap  int
	mu   sync.RWMutex
}

func NewHistory(cap int) *History {
	return &History{
		data: deque.New[HistoryItem](cap, cap),
		cap:  cap,
	}
}

func (h *History) Add(item HistoryItem) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now()
	}
	if h.data.Len() >= h.cap {
		h.data.PopFront()
	}
	h.data.PushBack(item)
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.data.Len()
}

// Recent returns items newest first
func (h *History) Recent() []HistoryItem {
	h.mu.RLock()
	defer h.mu.RUnlock()

	items := make([]HistoryItem, 0, h.data.Len())
	for i := h.data.Len() - 1; i >= 0; i-- {
		items = append(items, h.data.At(i))
	}
	return items
}

func (h *History) Range(f func(item HistoryItem) bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for i := 0; i < h.data.Len(); i++ {
		if !f(h.data.At(i)) {
			return
		}
	}
}
