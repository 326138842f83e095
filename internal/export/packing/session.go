package packing

// maxHistory bounds the undo stack of a session.
const maxHistory = 50

// Session is the editing state of one packing list: the current manifest, the
// containers as last loaded from or written to storage, and the undo/redo
// stacks. Sessions are serialised whole, so every field is exported.
type Session struct {
	ID       string          `json:"id"`
	Invoice  InvoiceSnapshot `json:"invoice"`
	Current  Manifest        `json:"current"`
	Baseline []Container     `json:"baseline"`
	History  []Manifest      `json:"history,omitempty"`
	Future   []Manifest      `json:"future,omitempty"`
}

// NewSession opens a session on a loaded manifest.
func NewSession(id string, inv InvoiceSnapshot, m Manifest) *Session {
	m = RecomputeTotals(m)
	return &Session{
		ID:       id,
		Invoice:  inv,
		Current:  m,
		Baseline: m.clone().Containers,
	}
}

// Apply runs one edit. On error the session is left untouched.
func (s *Session) Apply(edit func(Manifest) (Manifest, error)) error {
	next, err := edit(s.Current)
	if err != nil {
		return err
	}
	s.History = append(s.History, s.Current)
	if len(s.History) > maxHistory {
		s.History = s.History[len(s.History)-maxHistory:]
	}
	s.Future = nil
	s.Current = RecomputeTotals(next)
	return nil
}

// Undo steps back one edit. It reports false when there is nothing to undo.
func (s *Session) Undo() bool {
	if len(s.History) == 0 {
		return false
	}
	last := len(s.History) - 1
	s.Future = append(s.Future, s.Current)
	s.Current = s.History[last]
	s.History = s.History[:last]
	return true
}

// Redo re-applies an undone edit.
func (s *Session) Redo() bool {
	if len(s.Future) == 0 {
		return false
	}
	last := len(s.Future) - 1
	s.History = append(s.History, s.Current)
	s.Current = s.Future[last]
	s.Future = s.Future[:last]
	return true
}

// MarkSaved records a successful save. The persisted identity is copied onto
// every history entry so that undoing an edit never forgets the packing list exists.
func (s *Session) MarkSaved(saved Manifest) {
	s.Current = saved
	s.Baseline = saved.clone().Containers
	stamp := func(ms []Manifest) {
		for i := range ms {
			ms[i].ID = saved.ID
			ms[i].IsExisting = saved.IsExisting
		}
	}
	stamp(s.History)
	stamp(s.Future)
}
