package services

import (
	"encoding/json"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/examstack/exam-platform/internal/models"
)

func TestAnswersMatch(t *testing.T) {
	tests := []struct {
		name  string
		key   interface{}
		given interface{}
		want  bool
	}{
		{name: "exact string", key: "Paris", given: "Paris", want: true},
		{name: "case insensitive", key: "Paris", given: "paris", want: true},
		{name: "surrounding whitespace", key: "Paris", given: "  Paris ", want: true},
		{name: "wrong string", key: "Paris", given: "London", want: false},
		{name: "nil answer", key: "Paris", given: nil, want: false},
		{name: "bool key", key: true, given: true, want: true},
		{name: "bool vs string", key: true, given: "true", want: true},
		{name: "number", key: float64(42), given: float64(42), want: true},
		{
			name:  "list unordered",
			key:   []interface{}{"a", "b"},
			given: []interface{}{"B", "a"},
			want:  true,
		},
		{
			name:  "list length mismatch",
			key:   []interface{}{"a", "b"},
			given: []interface{}{"a"},
			want:  false,
		},
		{
			name:  "list vs scalar",
			key:   []interface{}{"a"},
			given: "a",
			want:  false,
		},
		{
			name:  "list with duplicate given",
			key:   []interface{}{"a", "b"},
			given: []interface{}{"a", "a"},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := answersMatch(tt.key, tt.given); got != tt.want {
				t.Errorf("answersMatch(%v, %v) = %v, want %v", tt.key, tt.given, got, tt.want)
			}
		})
	}
}

func TestAutoGradeAnswers(t *testing.T) {
	questions := []models.Question{
		{ID: 1, Type: models.MultipleChoice, Points: 5, Answer: datatypes.JSON(`"b"`)},
		{ID: 2, Type: models.TrueFalse, Points: 3, Answer: datatypes.JSON(`true`)},
		{ID: 3, Type: models.LongAnswer, Points: 10},
	}
	buffer := datatypes.JSONMap{
		"1": "b",
		"2": false,
		"3": "essay text",
	}

	answers, total, allGraded, err := autoGradeAnswers(questions, buffer)
	if err != nil {
		t.Fatalf("autoGradeAnswers() error = %v", err)
	}
	if len(answers) != 3 {
		t.Fatalf("expected 3 answers, got %d", len(answers))
	}
	if allGraded {
		t.Error("expected allGraded to be false with a long answer present")
	}
	if total != 5 {
		t.Errorf("expected total score 5, got %v", total)
	}

	if answers[0].Score == nil || *answers[0].Score != 5 {
		t.Errorf("expected question 1 to score 5, got %v", answers[0].Score)
	}
	if answers[1].IsCorrect == nil || *answers[1].IsCorrect {
		t.Errorf("expected question 2 to be marked incorrect, got %v", answers[1].IsCorrect)
	}
	if answers[2].Score != nil || answers[2].IsCorrect != nil {
		t.Error("expected the long answer to stay unscored")
	}
	if answers[2].Answer != "essay text" {
		t.Errorf("expected the long answer text to be carried over, got %v", answers[2].Answer)
	}
}

func TestAutoGradeAnswersMissingAnswer(t *testing.T) {
	questions := []models.Question{
		{ID: 7, Type: models.ShortAnswer, Points: 2, Answer: datatypes.JSON(`"x"`)},
	}

	answers, total, allGraded, err := autoGradeAnswers(questions, nil)
	if err != nil {
		t.Fatalf("autoGradeAnswers() error = %v", err)
	}
	if !allGraded {
		t.Error("expected allGraded with only auto-gradable questions")
	}
	if total != 0 {
		t.Errorf("expected total 0, got %v", total)
	}
	if answers[0].IsCorrect == nil || *answers[0].IsCorrect {
		t.Error("expected an unanswered question to be marked incorrect")
	}
}

func TestAutoGradeAnswersNoKey(t *testing.T) {
	questions := []models.Question{
		{ID: 9, Type: models.ShortAnswer, Points: 2},
	}

	answers, _, allGraded, err := autoGradeAnswers(questions, datatypes.JSONMap{"9": "x"})
	if err != nil {
		t.Fatalf("autoGradeAnswers() error = %v", err)
	}
	if allGraded {
		t.Error("expected a question without a key to need manual grading")
	}
	if answers[0].Score != nil {
		t.Error("expected a question without a key to stay unscored")
	}
}

func TestBuildSnapshot(t *testing.T) {
	started := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	submitted := started.Add(12 * time.Minute)

	quiz := &models.Quiz{
		ID: 4,
		Questions: []models.Question{
			{ID: 1, Points: 5},
			{ID: 2, Points: 5},
		},
	}
	session := &models.ExamSession{QuizID: 4, StudentID: "student-1", StartedAt: started}
	submission := &models.Submission{
		ID:          21,
		QuizID:      4,
		StudentID:   "student-1",
		TotalScore:  5,
		SubmittedAt: submitted,
	}

	correct := true
	wrong := false
	answers := []models.SubmittedAnswer{
		{QuestionID: 1, IsCorrect: &correct},
		{QuestionID: 2, IsCorrect: &wrong},
	}

	snapshot, err := buildSnapshot(submission, quiz, session, answers, map[string]string{"browser": "firefox"})
	if err != nil {
		t.Fatalf("buildSnapshot() error = %v", err)
	}

	if snapshot.MaxScore != 10 {
		t.Errorf("expected max score 10, got %d", snapshot.MaxScore)
	}
	if snapshot.Percentage != 50 {
		t.Errorf("expected 50%%, got %v", snapshot.Percentage)
	}
	if snapshot.TimeSpent != 720 {
		t.Errorf("expected 720s spent, got %d", snapshot.TimeSpent)
	}
	if snapshot.SubmissionID != 21 {
		t.Errorf("expected submission id 21, got %d", snapshot.SubmissionID)
	}

	var results map[string]bool
	if err := json.Unmarshal(snapshot.QuestionResults, &results); err != nil {
		t.Fatalf("failed to decode question results: %v", err)
	}
	if !results["1"] || results["2"] {
		t.Errorf("unexpected question results: %v", results)
	}
	if len(snapshot.DeviceInfo) == 0 {
		t.Error("expected device info to be recorded")
	}
}

func TestSubmittedAnswersRoundTrip(t *testing.T) {
	score := 3.0
	in := []models.SubmittedAnswer{
		{QuestionID: 1, Answer: "a", Score: &score},
		{QuestionID: 2, Answer: []interface{}{"x", "y"}},
	}

	data, err := marshalSubmittedAnswers(in)
	if err != nil {
		t.Fatalf("marshalSubmittedAnswers() error = %v", err)
	}
	out, err := unmarshalSubmittedAnswers(data)
	if err != nil {
		t.Fatalf("unmarshalSubmittedAnswers() error = %v", err)
	}

	if len(out) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(out))
	}
	if out[0].QuestionID != 1 || out[0].Score == nil || *out[0].Score != 3 {
		t.Errorf("unexpected first answer: %+v", out[0])
	}
}

func TestUnmarshalSubmittedAnswersEmpty(t *testing.T) {
	out, err := unmarshalSubmittedAnswers(nil)
	if err != nil {
		t.Fatalf("unmarshalSubmittedAnswers(nil) error = %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected no answers, got %d", len(out))
	}
}
