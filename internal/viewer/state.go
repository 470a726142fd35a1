package viewer

import (
	"strings"
	"sync/atomic"
)

// State is the shared interactive view state. The active factor is the only
// mutable value; concurrent selections resolve to the last write.
type State struct {
	active atomic.Pointer[string]
}

// Active returns the selected factor code, or "" when none is selected.
func (s *State) Active() string {
	if p := s.active.Load(); p != nil {
		return *p
	}
	return ""
}

// SetActive selects code (trimmed) and returns the previous selection. An
// empty code clears the selection. Codes absent from the dataset are
// accepted and style every county neutral.
func (s *State) SetActive(code string) string {
	code = strings.TrimSpace(code)
	prev := s.active.Swap(&code)
	if prev == nil {
		return ""
	}
	return *prev
}
