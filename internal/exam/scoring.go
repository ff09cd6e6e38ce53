package exam

import (
	"math"

	"github.com/stemsi/examhall/internal/model"
)

// Outcome is the graded sheet of one attempt.
type Outcome struct {
	Score       float64              `json:"score"`
	Total       float64              `json:"total"`
	Percentage  float64              `json:"percentage"`
	Answers     []model.ResultAnswer `json:"answers"`
	Correct     int                  `json:"correct"`
	Wrong       int                  `json:"wrong"`
	Unattempted int                  `json:"unattempted"`
}

// Score grades answers (original index -> chosen option) against questions.
//
// A correct answer earns MarksPerCorrect, a different non-empty answer earns
// MarksPerWrong and a missing one earns nothing. Every question carries the
// same weight, so Total is len(questions) * MarksPerCorrect.
func Score(questions []model.Question, answers map[int]string, scheme model.MarkingScheme) Outcome {
	out := Outcome{
		Total:   float64(len(questions)) * scheme.MarksPerCorrect,
		Answers: make([]model.ResultAnswer, len(questions)),
	}

	for i, q := range questions {
		ra := model.ResultAnswer{
			QuestionText:  q.Prompt,
			ImageRef:      q.ImageRef,
			CorrectAnswer: q.CorrectAnswer,
			Subject:       q.Subject,
			Topic:         q.Topic,
		}

		selected, ok := answers[i]
		switch {
		case !ok || selected == "":
			out.Unattempted++
		case selected == q.CorrectAnswer:
			ra.Selected = &selected
			ra.IsCorrect = true
			out.Score += scheme.MarksPerCorrect
			out.Correct++
		default:
			ra.Selected = &selected
			out.Score += scheme.MarksPerWrong
			out.Wrong++
		}
		out.Answers[i] = ra
	}

	out.Percentage = Percentage(out.Score, out.Total)
	return out
}

// Percentage is score/total*100 rounded half up to a whole number. It is
// not clamped, so negative marking can yield a negative value. A zero
// total yields 0.
func Percentage(score, total float64) float64 {
	if total == 0 {
		return 0
	}
	return roundHalfUp(score / total * 100)
}

func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}
