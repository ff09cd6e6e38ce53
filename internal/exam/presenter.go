package exam

import (
	"math/rand/v2"

	"github.com/stemsi/examhall/internal/model"
)

// PresentedQuestion is a question at its display position. OriginalIndex is
// the key used for answers, navigation and the stored result.
type PresentedQuestion struct {
	OriginalIndex int            `json:"original_index"`
	Position      int            `json:"position"`
	Question      model.Question `json:"question"`
}

// Shuffler is satisfied by *rand.Rand.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

type globalShuffler struct{}

func (globalShuffler) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// Present returns questions in a uniformly random order (Fisher-Yates via
// Shuffle). A nil rng uses the process-wide source.
func Present(questions []model.Question, rng Shuffler) []PresentedQuestion {
	if rng == nil {
		rng = globalShuffler{}
	}

	idx := make([]int, len(questions))
	for i := range idx {
		idx[i] = i
	}
	rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	out := make([]PresentedQuestion, len(idx))
	for pos, orig := range idx {
		out[pos] = PresentedQuestion{
			OriginalIndex: orig,
			Position:      pos + 1,
			Question:      questions[orig],
		}
	}
	return out
}

// Order returns the original indices in display order.
func Order(presented []PresentedQuestion) []int {
	order := make([]int, len(presented))
	for i, p := range presented {
		order[i] = p.OriginalIndex
	}
	return order
}

// Restore rebuilds the original question list from a presentation.
func Restore(presented []PresentedQuestion) []model.Question {
	out := make([]model.Question, len(presented))
	for _, p := range presented {
		out[p.OriginalIndex] = p.Question
	}
	return out
}
