package dispatch

// callQueue is a FIFO buffer of pending calls. It is owned by the
// Dispatcher and only touched under the dispatcher's lock.
type callQueue struct {
	items []*Call
}

func (q *callQueue) push(c *Call) {
	q.items = append(q.items, c)
}

func (q *callQueue) size() int {
	return len(q.items)
}

func (q *callQueue) peekHead() *Call {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

func (q *callQueue) popHead() *Call {
	if len(q.items) == 0 {
		return nil
	}
	head := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return head
}

// extractUpTo removes and returns up to limit entries accepted by eligible,
// in their original relative order. The scan is a single left-to-right pass:
// rejected entries stay in place, also keeping their relative order, and
// entries past the stop point are never touched.
func (q *callQueue) extractUpTo(limit int, eligible func(*Call) bool) []*Call {
	if limit <= 0 || len(q.items) == 0 {
		return nil
	}

	var taken []*Call
	kept := q.items[:0]
	scanned := 0
	for _, c := range q.items {
		if len(taken) == limit {
			break
		}
		scanned++
		if eligible(c) {
			taken = append(taken, c)
		} else {
			kept = append(kept, c)
		}
	}
	kept = append(kept, q.items[scanned:]...)

	// Clear the vacated tail so settled calls are not retained.
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = kept
	return taken
}

// drainAll removes and returns every queued call.
func (q *callQueue) drainAll() []*Call {
	items := q.items
	q.items = nil
	return items
}
