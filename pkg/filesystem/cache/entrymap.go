package cache

// slot is a single arena slot.
type slot struct {
	// entry is the stored entry, nil when the slot is vacant.
	entry *Entry
	// generation is the slot's current generation. It is bumped on removal
	// so that keys issued for earlier occupants stop resolving.
	generation uint32
	// occupied indicates whether or not the slot currently holds an entry.
	occupied bool
}

// EntryMap is a slotted arena mapping stable keys to entries. Insertion,
// removal, and lookup are amortised constant time. It is not safe for
// concurrent use; the reconciler guards it with its own lock.
type EntryMap struct {
	// slots is the slot arena.
	slots []slot
	// free holds the indices of vacant slots available for reuse.
	free []uint32
	// count is the number of occupied slots.
	count int
}

// NewEntryMap creates an empty entry map.
func NewEntryMap() *EntryMap {
	return &EntryMap{}
}

// Insert stores an entry and returns its key.
func (m *EntryMap) Insert(entry *Entry) EntryKey {
	m.count++

	// Reuse a vacant slot if one is available.
	if n := len(m.free); n > 0 {
		index := m.free[n-1]
		m.free = m.free[:n-1]
		s := &m.slots[index]
		s.entry = entry
		s.occupied = true
		return EntryKey{index: index, generation: s.generation}
	}

	// Otherwise grow the arena.
	m.slots = append(m.slots, slot{entry: entry, generation: 1, occupied: true})
	return EntryKey{index: uint32(len(m.slots) - 1), generation: 1}
}

// Get returns the entry for the specified key, or nil if the key does not
// resolve to a live entry.
func (m *EntryMap) Get(key EntryKey) *Entry {
	if key.IsZero() || key.index >= uint32(len(m.slots)) {
		return nil
	}
	s := &m.slots[key.index]
	if !s.occupied || s.generation != key.generation {
		return nil
	}
	return s.entry
}

// Remove removes the entry for the specified key, returning it. It returns
// nil if the key does not resolve. The freed slot becomes reusable under a
// new generation.
func (m *EntryMap) Remove(key EntryKey) *Entry {
	entry := m.Get(key)
	if entry == nil {
		return nil
	}
	s := &m.slots[key.index]
	s.entry = nil
	s.occupied = false
	s.generation++
	m.free = append(m.free, key.index)
	m.count--
	return entry
}

// Len returns the number of live entries.
func (m *EntryMap) Len() int {
	return m.count
}
