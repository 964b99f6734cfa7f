package session

import (
	"fmt"
	"regexp"

	"github.com/aretw0/inkwell/pkg/core"
)

// taskItem matches a list item carrying a checkbox; group 2 is the mark.
var taskItem = regexp.MustCompile(`(?m)^([ \t]*[-*+][ \t]*\[)([ xX])\](?:\s|$)`)

// toggleTask flips the mark of the index-th task item (zero-based, document
// order). It reports false when there is no such item.
func toggleTask(text string, index int) (string, bool) {
	if index < 0 {
		return text, false
	}
	matches := taskItem.FindAllStringSubmatchIndex(text, index+1)
	if len(matches) <= index {
		return text, false
	}
	at := matches[index][4]
	mark := "x"
	if text[at] != ' ' {
		mark = " "
	}
	return text[:at] + mark + text[at+1:], true
}

// ToggleTask checks or unchecks the index-th task item, counted in the same
// order the preview renders checkboxes. The change goes through Edit.
func (s *Session) ToggleTask(index int) error {
	s.mu.Lock()
	text := s.state.Text
	s.mu.Unlock()

	next, ok := toggleTask(text, index)
	if !ok {
		return fmt.Errorf("%w: %d", core.ErrNoTask, index)
	}
	s.Edit(next)
	return nil
}
