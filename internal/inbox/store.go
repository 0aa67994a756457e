package inbox

import "sync"

// View names an ordered projection over the shared conversation table.
type View string

const (
	ViewInbox    View = "inbox"
	ViewWhatsApp View = "whatsapp"
)

// Store is the single source of truth for conversations. Views hold ids
// only, so an update to a record is visible in every view that lists it.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Conversation
	views   map[View][]string
}

func NewStore() *Store {
	return &Store{records: map[string]*Conversation{}, views: map[View][]string{}}
}

// Upsert inserts or replaces records. A summary without messages keeps the
// message history already loaded for that conversation.
func (s *Store) Upsert(cs ...Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cs {
		if c.ID == "" {
			continue
		}
		next := c.clone()
		if existing, ok := s.records[c.ID]; ok && next.Messages == nil {
			next.Messages = existing.Messages
		}
		s.records[c.ID] = &next
	}
}

// SetView replaces a view's ordering.
func (s *Store) SetView(v View, ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views[v] = dedupe(nil, ids)
}

// MergeView appends ids the view does not hold yet. Existing entries keep
// their position.
func (s *Store) MergeView(v View, ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views[v] = dedupe(s.views[v], ids)
}

func dedupe(base, add []string) []string {
	seen := make(map[string]struct{}, len(base)+len(add))
	out := make([]string, 0, len(base)+len(add))
	for _, list := range [][]string{base, add} {
		for _, id := range list {
			if _, ok := seen[id]; ok || id == "" {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// List returns copies of the records in a view, in view order.
func (s *Store) List(v View) []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.views[v]
	out := make([]Conversation, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.records[id]; ok {
			out = append(out, c.clone())
		}
	}
	return out
}

// InView reports whether a view lists id.
func (s *Store) InView(v View, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, x := range s.views[v] {
		if x == id {
			return true
		}
	}
	return false
}

func (s *Store) Get(id string) (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.records[id]
	if !ok {
		return Conversation{}, false
	}
	return c.clone(), true
}

// Update mutates a record in place under the store lock.
func (s *Store) Update(id string, fn func(c *Conversation)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.records[id]
	if !ok {
		return false
	}
	fn(c)
	return true
}

// FindMessage returns the conversation holding messageID.
func (s *Store) FindMessage(messageID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, c := range s.records {
		for _, m := range c.Messages {
			if m.ID == messageID {
				return id, true
			}
		}
	}
	return "", false
}

// Remove drops a record and every view entry for it.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	for v, ids := range s.views {
		out := ids[:0]
		for _, x := range ids {
			if x != id {
				out = append(out, x)
			}
		}
		s.views[v] = out
	}
}
