package session

import "encoding/json"

// Index is a user's session ids in insertion order, oldest first.
//
// Eviction is FIFO by creation, not by last use: a session touched a second ago is
// still evicted before a newer idle one. An Index is not safe for concurrent use; it
// is loaded, mutated and written back within one call.
type Index struct {
	ids []string
}

// NewIndex builds an index from ids, oldest first.
func NewIndex(ids ...string) *Index {
	x := &Index{ids: make([]string, 0, len(ids))}
	for _, id := range ids {
		x.Push(id, 0)
	}
	return x
}

// Push appends id as the newest entry. When capacity > 0 and the index grows beyond
// it, the oldest ids are removed and returned, oldest first.
func (x *Index) Push(id string, capacity int) []string {
	x.Remove(id)
	x.ids = append(x.ids, id)

	if capacity <= 0 || len(x.ids) <= capacity {
		return nil
	}

	n := len(x.ids) - capacity
	evicted := make([]string, n)
	copy(evicted, x.ids[:n])
	x.ids = append(x.ids[:0:0], x.ids[n:]...)
	return evicted
}

// Remove deletes id and reports whether it was present.
func (x *Index) Remove(id string) bool {
	for i, cur := range x.ids {
		if cur == id {
			x.ids = append(x.ids[:i], x.ids[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether id is indexed.
func (x *Index) Contains(id string) bool {
	for _, cur := range x.ids {
		if cur == id {
			return true
		}
	}
	return false
}

// IDs returns a copy of the ids, oldest first.
func (x *Index) IDs() []string {
	out := make([]string, len(x.ids))
	copy(out, x.ids)
	return out
}

func (x *Index) Len() int {
	return len(x.ids)
}

func (x *Index) MarshalJSON() ([]byte, error) {
	if x.ids == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(x.ids)
}

func (x *Index) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*x = *NewIndex(ids...)
	return nil
}
