package exam

import (
	"strings"

	"github.com/stemsi/examhall/internal/model"
)

// Tracker holds the answer sheet and the navigation cursor of one attempt.
// All indices it accepts and returns are original question indices.
type Tracker struct {
	questions []model.Question
	order     []int
	answers   map[int]string
	subject   string
	view      []int
	cursor    int
}

// NewTracker creates a tracker over questions presented in order.
func NewTracker(questions []model.Question, order []int) *Tracker {
	t := &Tracker{
		questions: questions,
		order:     order,
		answers:   make(map[int]string, len(questions)),
	}
	t.view = order
	return t
}

// Select records option for the question. Last write wins; the option is
// not checked against the question's options.
func (t *Tracker) Select(index int, option string) error {
	if index < 0 || index >= len(t.questions) {
		return ErrQuestionOutOfRange
	}
	if option == "" {
		delete(t.answers, index)
		return nil
	}
	t.answers[index] = option
	return nil
}

// Clear removes the answer for the question.
func (t *Tracker) Clear(index int) error {
	return t.Select(index, "")
}

// Answer returns the recorded option for the question.
func (t *Tracker) Answer(index int) (string, bool) {
	a, ok := t.answers[index]
	return a, ok
}

// Answers returns a copy of the sparse answer map.
func (t *Tracker) Answers() map[int]string {
	out := make(map[int]string, len(t.answers))
	for k, v := range t.answers {
		out[k] = v
	}
	return out
}

func (t *Tracker) AnsweredCount() int {
	return len(t.answers)
}

func (t *Tracker) UnansweredCount() int {
	return len(t.questions) - len(t.answers)
}

// Subjects lists distinct subjects in presentation order.
func (t *Tracker) Subjects() []string {
	return distinctSubjects(len(t.order), func(i int) string { return t.questions[t.order[i]].Subject })
}

// SubjectsOf lists distinct subjects in question order. Subjects that differ
// only in case or surrounding space count as one; the first spelling wins.
func SubjectsOf(questions []model.Question) []string {
	return distinctSubjects(len(questions), func(i int) string { return questions[i].Subject })
}

func distinctSubjects(n int, subject func(int) string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for i := 0; i < n; i++ {
		s := strings.TrimSpace(subject(i))
		key := subjectKey(s)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// subjectKey is the comparison form of a subject label.
func subjectKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// FilterBySubject narrows navigation to one subject (case-insensitive).
// An empty subject restores the full order. Answers are untouched. The
// cursor stays on the current question if it is still visible, otherwise
// it moves to the first question of the new view.
func (t *Tracker) FilterBySubject(subject string) []int {
	current, hasCurrent := t.Current()

	t.subject = strings.TrimSpace(subject)
	if t.subject == "" {
		t.view = t.order
	} else {
		want := subjectKey(t.subject)
		view := make([]int, 0, len(t.order))
		for _, idx := range t.order {
			if subjectKey(t.questions[idx].Subject) == want {
				view = append(view, idx)
			}
		}
		t.view = view
	}

	t.cursor = 0
	if hasCurrent {
		for i, idx := range t.view {
			if idx == current {
				t.cursor = i
				break
			}
		}
	}
	return t.View()
}

// Subject returns the active filter, empty when unfiltered.
func (t *Tracker) Subject() string {
	return t.subject
}

// View returns the original indices visible under the current filter.
func (t *Tracker) View() []int {
	out := make([]int, len(t.view))
	copy(out, t.view)
	return out
}

// Current returns the question under the cursor. It is false when the view is empty.
func (t *Tracker) Current() (int, bool) {
	if len(t.view) == 0 {
		return -1, false
	}
	return t.view[t.cursor], true
}

// Position is the 1-based cursor position within the view.
func (t *Tracker) Position() int {
	if len(t.view) == 0 {
		return 0
	}
	return t.cursor + 1
}

// Next moves forward within the view. At the last question the cursor stays
// put and ok is false; an empty view yields (-1, false).
func (t *Tracker) Next() (int, bool) {
	return t.step(1)
}

// Previous moves back within the view, like Next.
func (t *Tracker) Previous() (int, bool) {
	return t.step(-1)
}

func (t *Tracker) step(delta int) (int, bool) {
	if len(t.view) == 0 {
		return -1, false
	}
	next := t.cursor + delta
	if next < 0 || next >= len(t.view) {
		return t.view[t.cursor], false
	}
	t.cursor = next
	return t.view[t.cursor], true
}

// JumpTo moves the cursor to a question in the current view.
func (t *Tracker) JumpTo(index int) error {
	if index < 0 || index >= len(t.questions) {
		return ErrQuestionOutOfRange
	}
	for i, idx := range t.view {
		if idx == index {
			t.cursor = i
			return nil
		}
	}
	return ErrNotInView
}
