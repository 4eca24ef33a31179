// Package queue implements the in-flight command queue: an ordered
// singly-linked FIFO of framed lines, used by the player to track which
// commands have been sent but not yet acknowledged or buffered by the
// controller.
package queue

// Item is one framed command line awaiting acknowledgement. Buffer holds the
// fully framed ASCII line including its terminal newline. Ownership of
// Buffer transfers to the caller once the item is popped off a Queue.
type Item struct {
	Buffer []byte
	Lineno uint32
	next   *Item
}

// Len returns the length of the framed line.
func (it *Item) Len() int {
	return len(it.Buffer)
}

// Queue is an ordered FIFO of *Item. The zero value is ready to use.
type Queue struct {
	begin, end *Item
	length     int
}

// Len reports the number of items currently queued.
func (q *Queue) Len() int {
	return q.length
}

// Append creates a new Item from buf and lineno and appends it.
func (q *Queue) Append(buf []byte, lineno uint32) *Item {
	item := &Item{Buffer: buf, Lineno: lineno}
	q.AppendItem(item)
	return item
}

// AppendItem appends an already-constructed item, taking ownership of it.
func (q *Queue) AppendItem(item *Item) {
	item.next = nil
	if q.length == 0 {
		q.begin, q.end = item, item
	} else {
		q.end.next = item
		q.end = item
	}
	q.length++
}

// PopFront removes and returns the head item, or nil if the queue is empty.
// The caller owns the returned item's buffer after this call.
func (q *Queue) PopFront() *Item {
	if q.length == 0 {
		return nil
	}
	item := q.begin
	q.begin = item.next
	q.length--
	if q.length == 0 {
		q.end = nil
	}
	item.next = nil
	return item
}

// Front returns the head item without removing it, or nil if empty.
func (q *Queue) Front() *Item {
	return q.begin
}

// Each calls fn for every item in FIFO order.
func (q *Queue) Each(fn func(*Item)) {
	for it := q.begin; it != nil; it = it.next {
		fn(it)
	}
}

// Clear drops every item from the queue. The caller is responsible for any
// external bookkeeping tied to the dropped buffers; the garbage collector
// reclaims the buffer memory itself.
func (q *Queue) Clear() {
	q.begin, q.end = nil, nil
	q.length = 0
}

// DropWhile removes items from the front of the queue while pred returns
// true, returning the dropped items in order. It stops at the first item for
// which pred returns false (or when the queue is exhausted).
func (q *Queue) DropWhile(pred func(*Item) bool) []*Item {
	var dropped []*Item
	for q.begin != nil && pred(q.begin) {
		dropped = append(dropped, q.PopFront())
	}
	return dropped
}
