package suggest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"ge-copilot/internal/logger"
)

// QueuedBuy is one durable buy candidate awaiting a free slot.
type QueuedBuy struct {
	ItemID           int64   `json:"item_id"`
	Name             string  `json:"name"`
	Price            int64   `json:"price"`
	Qty              int64   `json:"quantity"`
	ExpectedProfit   int64   `json:"expected_profit"`
	ExpectedDuration float64 `json:"expected_duration"`
}

type buyQueueFile struct {
	BuyQueue []QueuedBuy `json:"buy_queue"`
}

// BuyQueue is the on-disk FIFO of pending buy candidates, persisted via
// write-to-temp-then-rename so a crash mid-write never leaves a torn file.
type BuyQueue struct {
	mu   sync.Mutex
	path string
}

// NewBuyQueue binds a BuyQueue to path, the ledger file location.
func NewBuyQueue(path string) *BuyQueue {
	return &BuyQueue{path: path}
}

func (q *BuyQueue) load() []QueuedBuy {
	data, err := os.ReadFile(q.path)
	if err != nil {
		return nil
	}
	var f buyQueueFile
	if err := json.Unmarshal(data, &f); err != nil {
		logger.Warn("suggest", "buy_queue file corrupt, starting empty: "+err.Error())
		return nil
	}
	return f.BuyQueue
}

func (q *BuyQueue) save(items []QueuedBuy) error {
	f := buyQueueFile{BuyQueue: items}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(q.path)
	tmp, err := os.CreateTemp(dir, ".buy_queue-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, q.path)
}

// Push appends entries to the tail of the queue.
func (q *BuyQueue) Push(entries ...QueuedBuy) error {
	if len(entries) == 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.load()
	items = append(items, entries...)
	return q.save(items)
}

// Pop removes and returns the head of the queue, dropping any entry whose
// item_id is in dropItemIDs first (the skip_suggestion effect).
func (q *BuyQueue) Pop(dropItemIDs map[int64]bool) (*QueuedBuy, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.load()
	if len(dropItemIDs) > 0 {
		filtered := items[:0]
		for _, it := range items {
			if !dropItemIDs[it.ItemID] {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}
	if len(items) == 0 {
		_ = q.save(items)
		return nil, false
	}
	head := items[0]
	rest := items[1:]
	if err := q.save(rest); err != nil {
		logger.Warn("suggest", "failed to persist buy queue: "+err.Error())
	}
	return &head, true
}
