package exam

import (
	"math"
	"sort"
	"strings"

	"github.com/stemsi/examhall/internal/model"
)

// GeneralSubject labels questions stored without a subject.
const GeneralSubject = "General"

// SubjectAccuracy is the per-subject tally of one result.
type SubjectAccuracy struct {
	Subject   string  `json:"subject"`
	Questions int     `json:"questions"`
	Attempted int     `json:"attempted"`
	Correct   int     `json:"correct"`
	Accuracy  float64 `json:"accuracy"`
}

// SubjectBreakdown tallies answers by subject, sorted by subject name.
// Subjects are matched like the navigation filter matches them, and the
// first spelling seen labels the group.
// Accuracy is correct/attempted as a whole percentage; 0 when nothing was attempted.
func SubjectBreakdown(answers []model.ResultAnswer) []SubjectAccuracy {
	bySubject := make(map[string]*SubjectAccuracy)
	var keys []string

	for _, a := range answers {
		name := strings.TrimSpace(a.Subject)
		if name == "" {
			name = GeneralSubject
		}
		key := subjectKey(name)
		acc, ok := bySubject[key]
		if !ok {
			acc = &SubjectAccuracy{Subject: name}
			bySubject[key] = acc
			keys = append(keys, key)
		}
		acc.Questions++
		if a.Attempted() {
			acc.Attempted++
			if a.IsCorrect {
				acc.Correct++
			}
		}
	}

	sort.Strings(keys)
	out := make([]SubjectAccuracy, 0, len(keys))
	for _, key := range keys {
		acc := bySubject[key]
		if acc.Attempted > 0 {
			acc.Accuracy = roundHalfUp(float64(acc.Correct) / float64(acc.Attempted) * 100)
		}
		out = append(out, *acc)
	}
	return out
}

// Standing places one student among everyone who sat an exam. Each student
// is ranked by their best attempt; equal scores share a rank.
type Standing struct {
	Attempts     int     `json:"attempts"`
	BestScore    float64 `json:"best_score"`
	Rank         int     `json:"rank"`
	Participants int     `json:"participants"`
	Percentile   float64 `json:"percentile"`
	TopScore     float64 `json:"top_score"`
	TopperID     int     `json:"topper_id"`
	TopperName   string  `json:"topper_name,omitempty"`
	AverageScore float64 `json:"average_score"`
}

type bestAttempt struct {
	studentID int
	name      string
	result    model.Result
}

// ComputeStanding ranks studentID within results. It returns false when the
// student has no result among them.
func ComputeStanding(results []model.Result, studentID int) (Standing, bool) {
	best := make(map[int]*bestAttempt)
	attempts := 0
	for _, r := range results {
		if r.StudentID == studentID {
			attempts++
		}
		b, ok := best[r.StudentID]
		if !ok || r.Score > b.result.Score ||
			(r.Score == b.result.Score && r.AttemptedAt.Before(b.result.AttemptedAt)) {
			best[r.StudentID] = &bestAttempt{studentID: r.StudentID, name: r.StudentName, result: r}
		}
	}

	mine, ok := best[studentID]
	if !ok {
		return Standing{}, false
	}

	ranked := make([]*bestAttempt, 0, len(best))
	var sum float64
	for _, b := range best {
		ranked = append(ranked, b)
		sum += b.result.Score
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].result.Score != ranked[j].result.Score {
			return ranked[i].result.Score > ranked[j].result.Score
		}
		if !ranked[i].result.AttemptedAt.Equal(ranked[j].result.AttemptedAt) {
			return ranked[i].result.AttemptedAt.Before(ranked[j].result.AttemptedAt)
		}
		return ranked[i].studentID < ranked[j].studentID
	})

	above, below := 0, 0
	for _, b := range ranked {
		switch {
		case b.result.Score > mine.result.Score:
			above++
		case b.result.Score < mine.result.Score:
			below++
		}
	}

	n := len(ranked)
	top := ranked[0]
	return Standing{
		Attempts:     attempts,
		BestScore:    mine.result.Score,
		Rank:         above + 1,
		Participants: n,
		Percentile:   round2(float64(below) / float64(n) * 100),
		TopScore:     top.result.Score,
		TopperID:     top.studentID,
		TopperName:   top.name,
		AverageScore: round2(sum / float64(n)),
	}, true
}

func round2(x float64) float64 {
	return math.Floor(x*100+0.5) / 100
}
