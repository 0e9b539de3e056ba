// Package store keeps the bounded, deduplicated row windows the ingester
// persists after every batch.
package store

import (
	"container/list"
	"strings"
)

// DefaultCapacity is the number of distinct rows a window keeps.
const DefaultCapacity = 50

// KeyFunc returns the identity of a row. Rows with equal keys collapse.
type KeyFunc func(row string) string

// DetailedKey keys a detailed row by its id, the text before the first comma.
func DetailedKey(row string) string {
	id, _, _ := strings.Cut(row, ",")
	return id
}

// LineKey keys a row by its full text.
func LineKey(row string) string {
	return row
}

// Window is an insertion-ordered, key-deduplicated collection bounded to a
// fixed capacity. Adding a row whose key is already present replaces the old
// row and moves it to the newest position. When full, the oldest row is evicted.
// A Window is not safe for concurrent use.
type Window struct {
	capacity int
	key      KeyFunc
	ll       *list.List               // oldest at front
	items    map[string]*list.Element // key -> element
}

type entry struct {
	key string
	row string
}

// NewWindow creates an empty window. A non-positive capacity means DefaultCapacity.
func NewWindow(capacity int, key KeyFunc) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if key == nil {
		key = LineKey
	}
	return &Window{
		capacity: capacity,
		key:      key,
		ll:       list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

// Add appends rows in order. Blank rows are ignored.
func (w *Window) Add(rows ...string) {
	for _, row := range rows {
		if strings.TrimSpace(row) == "" {
			continue
		}
		k := w.key(row)
		if el, ok := w.items[k]; ok {
			w.ll.Remove(el)
		}
		w.items[k] = w.ll.PushBack(entry{key: k, row: row})

		for w.ll.Len() > w.capacity {
			oldest := w.ll.Front()
			w.ll.Remove(oldest)
			delete(w.items, oldest.Value.(entry).key)
		}
	}
}

// Rows returns the rows oldest first.
func (w *Window) Rows() []string {
	rows := make([]string, 0, w.ll.Len())
	for el := w.ll.Front(); el != nil; el = el.Next() {
		rows = append(rows, el.Value.(entry).row)
	}
	return rows
}

// Len returns the number of rows held.
func (w *Window) Len() int {
	return w.ll.Len()
}

// Capacity returns the maximum number of rows held.
func (w *Window) Capacity() int {
	return w.capacity
}

// Merge concatenates existing and incoming, keeps the last occurrence of
// every key at the position of that occurrence, and returns the newest
// capacity rows in order.
func Merge(existing, incoming []string, key KeyFunc, capacity int) []string {
	w := NewWindow(capacity, key)
	w.Add(existing...)
	w.Add(incoming...)
	return w.Rows()
}
