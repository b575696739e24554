package nested

import "github.com/otter-sec/anchor-lints-sub000/analysis/ir"

// State tracks cross-function progress while a lint descends into helpers.
// One State is shared across all handlers of a crate so each helper is only
// analyzed and warned about once.
type State struct {
	analyzing map[string]bool
	analyzed  map[string]bool
	warned    map[string]bool
	// traitSpans remembers call sites that resolved to trait methods the
	// analysis could not descend into.
	traitSpans []ir.Span
}

func NewState() *State {
	return &State{
		analyzing: make(map[string]bool),
		analyzed:  make(map[string]bool),
		warned:    make(map[string]bool),
	}
}

// Enter marks a function as being analyzed. Returns false when the function
// is already on the descent stack or finished, meaning the caller must not
// recurse into it.
func (s *State) Enter(defPath string) bool {
	if s.analyzing[defPath] || s.analyzed[defPath] {
		return false
	}
	s.analyzing[defPath] = true
	return true
}

// Leave marks a function's analysis as finished.
func (s *State) Leave(defPath string) {
	delete(s.analyzing, defPath)
	s.analyzed[defPath] = true
}

// MarkWarned records a warning key, returning false when it was already
// reported.
func (s *State) MarkWarned(key string) bool {
	if s.warned[key] {
		return false
	}
	s.warned[key] = true
	return true
}

// NoteTraitMethod records a call site that resolved to a trait method.
func (s *State) NoteTraitMethod(span ir.Span) {
	s.traitSpans = append(s.traitSpans, span)
}

// TraitMethodSpans returns the recorded trait-method call sites.
func (s *State) TraitMethodSpans() []ir.Span {
	return s.traitSpans
}

// SawTraitMethodAt reports whether a trait-method call was recorded on the
// same line as span.
func (s *State) SawTraitMethodAt(span ir.Span) bool {
	for _, t := range s.traitSpans {
		if t.SameLine(span) {
			return true
		}
	}
	return false
}
