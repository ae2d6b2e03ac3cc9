package services

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/datatypes"

	"github.com/examstack/exam-platform/internal/models"
)

// autoGradeAnswers builds the submitted answer set from the session buffer
// in quiz question order, scoring every auto-gradable question against its
// key. Questions needing manual review are left unscored.
func autoGradeAnswers(questions []models.Question, buffer datatypes.JSONMap) ([]models.SubmittedAnswer, float64, bool, error) {
	answers := make([]models.SubmittedAnswer, 0, len(questions))
	totalScore := 0.0
	allGraded := true

	for _, question := range questions {
		var given interface{}
		if buffer != nil {
			given = buffer[strconv.FormatUint(uint64(question.ID), 10)]
		}

		answer := models.SubmittedAnswer{
			QuestionID: question.ID,
			Answer:     given,
		}

		if !question.Type.AutoGradable() || len(question.Answer) == 0 {
			allGraded = false
			answers = append(answers, answer)
			continue
		}

		var key interface{}
		if err := json.Unmarshal(question.Answer, &key); err != nil {
			return nil, 0, false, fmt.Errorf("failed to decode answer key for question %d: %w", question.ID, err)
		}

		correct := answersMatch(key, given)
		score := 0.0
		if correct {
			score = float64(question.Points)
		}
		answer.Score = &score
		answer.IsCorrect = &correct
		totalScore += score

		answers = append(answers, answer)
	}

	return answers, totalScore, allGraded, nil
}

// answersMatch compares a given answer against the key. Strings compare
// case-insensitively with surrounding whitespace ignored; lists compare as
// unordered sets.
func answersMatch(key, given interface{}) bool {
	if given == nil {
		return false
	}

	keyList, keyIsList := key.([]interface{})
	givenList, givenIsList := given.([]interface{})
	if keyIsList || givenIsList {
		if !keyIsList || !givenIsList || len(keyList) != len(givenList) {
			return false
		}
		matched := make([]bool, len(givenList))
		for _, k := range keyList {
			found := false
			for i, g := range givenList {
				if !matched[i] && scalarMatch(k, g) {
					matched[i] = true
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}

	return scalarMatch(key, given)
}

func scalarMatch(key, given interface{}) bool {
	return normalizeScalar(key) == normalizeScalar(given)
}

func normalizeScalar(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(t))
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func marshalSubmittedAnswers(answers []models.SubmittedAnswer) (datatypes.JSON, error) {
	data, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal answers: %w", err)
	}
	return data, nil
}

func unmarshalSubmittedAnswers(data datatypes.JSON) ([]models.SubmittedAnswer, error) {
	var answers []models.SubmittedAnswer
	if len(data) == 0 {
		return answers, nil
	}
	if err := json.Unmarshal(data, &answers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal answers: %w", err)
	}
	return answers, nil
}

// buildSnapshot projects a fully graded submission into the write-once
// analytics row.
func buildSnapshot(submission *models.Submission, quiz *models.Quiz, session *models.ExamSession, answers []models.SubmittedAnswer, deviceInfo map[string]string) (*models.AttemptSnapshot, error) {
	maxScore := 0
	for _, question := range quiz.Questions {
		maxScore += question.Points
	}

	percentage := 0.0
	if maxScore > 0 {
		percentage = submission.TotalScore / float64(maxScore) * 100
	}

	results := make(map[string]bool, len(answers))
	for _, answer := range answers {
		if answer.IsCorrect != nil {
			results[strconv.FormatUint(uint64(answer.QuestionID), 10)] = *answer.IsCorrect
		}
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal question results: %w", err)
	}

	snapshot := &models.AttemptSnapshot{
		QuizID:          submission.QuizID,
		StudentID:       submission.StudentID,
		SubmissionID:    submission.ID,
		Score:           submission.TotalScore,
		MaxScore:        maxScore,
		Percentage:      percentage,
		TimeSpent:       int(submission.SubmittedAt.Sub(session.StartedAt).Seconds()),
		QuestionResults: resultsJSON,
	}

	if len(deviceInfo) > 0 {
		deviceJSON, err := json.Marshal(deviceInfo)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal device info: %w", err)
		}
		snapshot.DeviceInfo = deviceJSON
	}
	return snapshot, nil
}
