package exam

import (
	"reflect"
	"testing"
	"time"

	"github.com/stemsi/examhall/internal/model"
)

func TestSubjectBreakdownMatchesManualTally(t *testing.T) {
	def := fiveQuestionExam()
	def.Questions = append(def.Questions, model.Question{Prompt: "q5", Options: []string{"x", "y"}, CorrectAnswer: "x"})
	answers := map[int]string{0: "a", 1: "c", 2: "c", 4: "b", 5: "x"}

	out := Score(def.Questions, answers, def.Marking)
	got := SubjectBreakdown(out.Answers)

	manual := map[string]*SubjectAccuracy{}
	for _, a := range out.Answers {
		name := a.Subject
		if name == "" {
			name = GeneralSubject
		}
		m, ok := manual[name]
		if !ok {
			m = &SubjectAccuracy{Subject: name}
			manual[name] = m
		}
		m.Questions++
		if a.Selected != nil {
			m.Attempted++
			if a.IsCorrect {
				m.Correct++
			}
		}
	}

	if len(got) != len(manual) {
		t.Fatalf("got %d subjects, want %d", len(got), len(manual))
	}
	for _, g := range got {
		m := manual[g.Subject]
		if m == nil || g.Questions != m.Questions || g.Attempted != m.Attempted || g.Correct != m.Correct {
			t.Fatalf("subject %q = %+v, manual %+v", g.Subject, g, m)
		}
	}

	want := []SubjectAccuracy{
		{Subject: "Chemistry", Questions: 2, Attempted: 1, Correct: 1, Accuracy: 100},
		{Subject: GeneralSubject, Questions: 1, Attempted: 1, Correct: 1, Accuracy: 100},
		{Subject: "Maths", Questions: 1, Attempted: 1, Correct: 0, Accuracy: 0},
		{Subject: "Physics", Questions: 2, Attempted: 2, Correct: 1, Accuracy: 50},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("breakdown = %+v\nwant %+v", got, want)
	}
}

func TestSubjectBreakdownEmpty(t *testing.T) {
	if got := SubjectBreakdown(nil); len(got) != 0 {
		t.Fatalf("got %+v, want empty", got)
	}
}

func TestSubjectsMatchAcrossCaseAndSpace(t *testing.T) {
	questions := []model.Question{
		mcq("q0", "Physics", "a", "a", "b"),
		mcq("q1", "physics ", "a", "a", "b"),
		mcq("q2", "Maths", "a", "a", "b"),
		mcq("q3", " PHYSICS", "a", "a", "b"),
	}

	if got, want := SubjectsOf(questions), []string{"Physics", "Maths"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("subjects = %v, want %v", got, want)
	}

	tr := NewTracker(questions, []int{0, 1, 2, 3})
	if view, want := tr.FilterBySubject("PHYSICS"), []int{0, 1, 3}; !reflect.DeepEqual(view, want) {
		t.Fatalf("filter view = %v, want %v", view, want)
	}

	out := Score(questions, map[int]string{0: "a", 1: "b", 3: "a"}, model.MarkingScheme{MarksPerCorrect: 1})
	want := []SubjectAccuracy{
		{Subject: "Maths", Questions: 1},
		{Subject: "Physics", Questions: 3, Attempted: 3, Correct: 2, Accuracy: 67},
	}
	if got := SubjectBreakdown(out.Answers); !reflect.DeepEqual(got, want) {
		t.Fatalf("breakdown = %+v\nwant %+v", got, want)
	}
}

func TestComputeStanding(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	results := []model.Result{
		{StudentID: 1, StudentName: "Ravi", Score: 40, AttemptedAt: base},
		{StudentID: 1, StudentName: "Ravi", Score: 55, AttemptedAt: base.Add(time.Hour)},
		{StudentID: 2, StudentName: "Meera", Score: 60, AttemptedAt: base.Add(2 * time.Hour)},
		{StudentID: 3, StudentName: "Kabir", Score: 60, AttemptedAt: base.Add(30 * time.Minute)},
		{StudentID: 4, StudentName: "Zoya", Score: -5, AttemptedAt: base},
	}

	tests := []struct {
		name      string
		studentID int
		want      Standing
		found     bool
	}{
		{
			name:      "middle of the table uses best attempt",
			studentID: 1,
			found:     true,
			want: Standing{
				Attempts: 2, BestScore: 55, Rank: 3, Participants: 4, Percentile: 25,
				TopScore: 60, TopperID: 3, TopperName: "Kabir", AverageScore: 42.5,
			},
		},
		{
			name:      "tied top shares rank one",
			studentID: 2,
			found:     true,
			want: Standing{
				Attempts: 1, BestScore: 60, Rank: 1, Participants: 4, Percentile: 50,
				TopScore: 60, TopperID: 3, TopperName: "Kabir", AverageScore: 42.5,
			},
		},
		{
			name:      "last place",
			studentID: 4,
			found:     true,
			want: Standing{
				Attempts: 1, BestScore: -5, Rank: 4, Participants: 4, Percentile: 0,
				TopScore: 60, TopperID: 3, TopperName: "Kabir", AverageScore: 42.5,
			},
		},
		{name: "no attempt", studentID: 9},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, found := ComputeStanding(results, tc.studentID)
			if found != tc.found {
				t.Fatalf("found = %v, want %v", found, tc.found)
			}
			if got != tc.want {
				t.Fatalf("standing = %+v\nwant %+v", got, tc.want)
			}
		})
	}
}
