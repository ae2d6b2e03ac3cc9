package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/examstack/exam-platform/internal/models"
	"github.com/examstack/exam-platform/internal/repositories"
	"github.com/examstack/exam-platform/internal/validator"
)

// Column layout shared by question import and export. Options and list
// answers are pipe-separated within their cell.
var questionSheetHeader = []string{"Type", "Text", "Points", "Options", "Answer"}

var resultsSheetHeader = []string{"Student ID", "Student Name", "Submitted At", "Score", "Max Score", "Percentage", "Time Spent (s)", "Graded"}

type importExportService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewImportExportService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator) ImportExportService {
	return &importExportService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
	}
}

// ImportQuestions appends questions from an xlsx workbook to the quiz. Rows
// that fail validation are skipped and reported; valid rows are committed in
// one transaction.
func (s *importExportService) ImportQuestions(ctx context.Context, quizID uint, userID string, data []byte) (*ImportResult, error) {
	if _, err := s.getOwnedQuiz(ctx, quizID, userID, "import_questions"); err != nil {
		return nil, err
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, NewBusinessRuleError("import_format", "file is not a readable xlsx workbook")
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	if len(rows) < 2 {
		return nil, NewBusinessRuleError("import_format", "workbook has no question rows")
	}

	maxOrder, err := s.repo.Question().MaxOrder(ctx, nil, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get question order: %w", err)
	}

	result := &ImportResult{}
	questions := make([]*models.Question, 0, len(rows)-1)

	for i, row := range rows[1:] {
		rowNum := i + 2 // 1-based, after the header
		req, err := parseQuestionRow(row)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}
		if errs := s.validator.ValidateQuestionCreate(req); len(errs) > 0 {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, errs))
			continue
		}

		question, err := buildQuestion(quizID, req, maxOrder+len(questions)+1)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}
		questions = append(questions, question)
	}

	if len(questions) > 0 {
		err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
			return txRepo.Question().CreateBatch(ctx, nil, questions)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to import questions: %w", err)
		}
	}

	result.Imported = len(questions)
	s.logger.Info("Questions imported", "quiz_id", quizID, "imported", result.Imported, "skipped", result.Skipped)
	return result, nil
}

// ExportQuestions writes the quiz's questions, answer keys included, to an
// xlsx workbook. Owner only.
func (s *importExportService) ExportQuestions(ctx context.Context, quizID uint, userID string) ([]byte, error) {
	if _, err := s.getOwnedQuiz(ctx, quizID, userID, "export_questions"); err != nil {
		return nil, err
	}

	questions, err := s.repo.Question().ListByQuiz(ctx, nil, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Questions"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := writeRow(f, sheet, 1, headerCells(questionSheetHeader)); err != nil {
		return nil, err
	}

	for i, question := range questions {
		cells := []interface{}{
			string(question.Type),
			question.Text,
			question.Points,
			joinJSONList(question.Options),
			answerCell(question.Answer),
		}
		if err := writeRow(f, sheet, i+2, cells); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportResults writes one row per graded attempt to an xlsx workbook.
func (s *importExportService) ExportResults(ctx context.Context, quizID uint, userID string) ([]byte, error) {
	if _, err := s.getOwnedQuiz(ctx, quizID, userID, "export_results"); err != nil {
		return nil, err
	}

	submissions, _, err := s.repo.Submission().List(ctx, nil, repositories.SubmissionFilters{
		QuizID: &quizID,
		SortBy: "submitted_at",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	snapshots, err := s.repo.Snapshot().ListByQuiz(ctx, nil, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	bySubmission := make(map[uint]*models.AttemptSnapshot, len(snapshots))
	for _, snap := range snapshots {
		bySubmission[snap.SubmissionID] = snap
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Results"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := writeRow(f, sheet, 1, headerCells(resultsSheetHeader)); err != nil {
		return nil, err
	}

	for i, submission := range submissions {
		cells := []interface{}{
			submission.StudentID,
			submission.Student.FullName,
			submission.SubmittedAt.Format("2006-01-02 15:04:05"),
			submission.TotalScore,
			"",
			"",
			"",
			submission.IsGraded,
		}
		if snap, ok := bySubmission[submission.ID]; ok {
			cells[4] = snap.MaxScore
			cells[5] = fmt.Sprintf("%.1f%%", snap.Percentage)
			cells[6] = snap.TimeSpent
		}
		if err := writeRow(f, sheet, i+2, cells); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ===== HELPERS =====

func (s *importExportService) getOwnedQuiz(ctx context.Context, id uint, userID, action string) (*models.Quiz, error) {
	quiz, err := s.repo.Quiz().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to load quiz: %w", err)
	}
	if quiz.CreatedBy != userID {
		return nil, NewPermissionError(userID, id, "quiz", action, "not the quiz owner")
	}
	return quiz, nil
}

// parseQuestionRow converts one sheet row into a create request. Expected
// columns: Type, Text, Points, Options, Answer.
func parseQuestionRow(row []string) (*validator.QuestionCreateRequest, error) {
	if len(row) < 3 {
		return nil, fmt.Errorf("expected at least type, text, and points")
	}

	qType := models.QuestionType(strings.TrimSpace(row[0]))
	if !qType.Valid() {
		return nil, fmt.Errorf("unknown question type %q", row[0])
	}

	points, err := strconv.Atoi(strings.TrimSpace(row[2]))
	if err != nil {
		return nil, fmt.Errorf("invalid points %q", row[2])
	}

	req := &validator.QuestionCreateRequest{
		Type:   qType,
		Text:   strings.TrimSpace(row[1]),
		Points: points,
	}
	if len(row) > 3 {
		req.Options = splitCell(row[3])
	}
	if len(row) > 4 {
		req.Answer = parseAnswerCell(qType, row[4])
	}
	return req, nil
}

// parseAnswerCell interprets the answer column: booleans for true/false
// questions, pipe-separated lists for multi-valued answers, plain strings
// otherwise. Empty cells mean no key (manual grading).
func parseAnswerCell(qType models.QuestionType, cell string) interface{} {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	if qType == models.TrueFalse {
		if b, err := strconv.ParseBool(strings.ToLower(cell)); err == nil {
			return b
		}
		return cell
	}
	if strings.Contains(cell, "|") {
		parts := splitCell(cell)
		list := make([]interface{}, len(parts))
		for i, p := range parts {
			list[i] = p
		}
		return list
	}
	return cell
}

func splitCell(cell string) []string {
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	parts := strings.Split(cell, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinJSONList(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return string(raw)
	}
	return strings.Join(list, " | ")
}

// answerCell renders a stored answer key back into the cell format the
// importer understands.
func answerCell(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return string(raw)
	}
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, " | ")
	default:
		return fmt.Sprint(v)
	}
}

func headerCells(header []string) []interface{} {
	cells := make([]interface{}, len(header))
	for i, h := range header {
		cells[i] = h
	}
	return cells
}

func writeRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	for col, value := range cells {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("failed to compute cell name: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return fmt.Errorf("failed to write cell %s: %w", cell, err)
		}
	}
	return nil
}
