package stratacache

import "sync"

// journal tracks keys this node has written or promoted so the sync pass has
// a bounded universe to reconcile. Oldest keys fall off when the limit is
// reached; a dropped key simply stops being repaired, it is not deleted.
type journal struct {
	mu    sync.Mutex
	limit int
	order []string
	idx   map[string]int // key -> position in order
}

func newJournal(limit int) *journal {
	return &journal{limit: limit, idx: make(map[string]int)}
}

func (j *journal) add(key string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.idx[key]; ok {
		return
	}
	if len(j.order) >= j.limit {
		oldest := j.order[0]
		j.order = j.order[1:]
		delete(j.idx, oldest)
		for k, i := range j.idx {
			j.idx[k] = i - 1
		}
	}
	j.idx[key] = len(j.order)
	j.order = append(j.order, key)
}

func (j *journal) remove(key string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	pos, ok := j.idx[key]
	if !ok {
		return
	}
	j.order = append(j.order[:pos], j.order[pos+1:]...)
	delete(j.idx, key)
	for k, i := range j.idx {
		if i > pos {
			j.idx[k] = i - 1
		}
	}
}

func (j *journal) reset() {
	j.mu.Lock()
	j.order = nil
	j.idx = make(map[string]int)
	j.mu.Unlock()
}

func (j *journal) snapshot() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.order))
	copy(out, j.order)
	return out
}
