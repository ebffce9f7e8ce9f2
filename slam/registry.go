package slam

// Registry is an append-only mapping from landmark tag ID to its
// registration index j: the position of the landmark's coordinates in the
// state vector, assigned in first-seen order. An index is assigned once and
// never reused or reassigned for the lifetime of the filter.
type Registry struct {
	// ids holds tag IDs in first-seen order
	ids []int
	// index maps a tag ID to its registration index
	index map[int]int
}

// NewRegistry creates an empty landmark registry.
func NewRegistry() *Registry {
	return &Registry{
		index: make(map[int]int),
	}
}

// Index returns the registration index of id and whether id is registered.
func (r *Registry) Index(id int) (int, bool) {
	j, ok := r.index[id]
	return j, ok
}

// Add registers id and returns its new index. If id is already registered
// it returns the existing index, so Add is idempotent per identifier.
func (r *Registry) Add(id int) int {
	if j, ok := r.index[id]; ok {
		return j
	}

	j := len(r.ids)
	r.ids = append(r.ids, id)
	r.index[id] = j

	return j
}

// Len returns the number of registered landmarks.
func (r *Registry) Len() int {
	return len(r.ids)
}

// IDs returns the registered tag IDs in first-seen order.
func (r *Registry) IDs() []int {
	ids := make([]int, len(r.ids))
	copy(ids, r.ids)

	return ids
}
