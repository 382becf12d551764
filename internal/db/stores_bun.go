// Copyright (c) 2026 Markbook Team
// Markbook - exam evaluation tracking store
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/toeirei/markbook/internal/model"
	"github.com/uptrace/bun"
)

// BunStore is the bun-backed Store used for every supported engine. It
// validates input, delegates to the *Bun helpers and tags failures with the
// operation name.
type BunStore struct {
	bun    *bun.DB
	dbType string
}

// NewBunStore wraps an existing *bun.DB. dbType selects the migration set.
func NewBunStore(bdb *bun.DB, dbType string) *BunStore {
	return &BunStore{bun: bdb, dbType: dbType}
}

// BunDB returns the underlying *bun.DB for advanced callers.
func (s *BunStore) BunDB() *bun.DB { return s.bun }

// Close releases the connection pool.
func (s *BunStore) Close() error {
	if s == nil || s.bun == nil {
		return nil
	}
	return s.bun.Close()
}

// InitializeSchema applies pending migrations. Calling it again is a no-op.
func (s *BunStore) InitializeSchema(ctx context.Context) error {
	if err := RunMigrations(ctx, s.bun, s.dbType); err != nil {
		return opError("InitializeSchema", err)
	}
	return nil
}

type teacherInput struct {
	Name         string `validate:"required,max=100"`
	Email        string `validate:"required,max=100"`
	PasswordHash string `validate:"required,max=255"`
}

func (s *BunStore) AddTeacher(ctx context.Context, name, email, passwordHash string) (int, error) {
	const op = "AddTeacher"
	if err := model.ValidateStruct(teacherInput{name, email, passwordHash}); err != nil {
		return 0, malformed(op, err)
	}
	id, err := AddTeacherBun(ctx, s.bun, name, email, passwordHash)
	if err != nil {
		return 0, opError(op, err)
	}
	dbLogf("added teacher %d <%s>", id, email)
	return id, nil
}

func (s *BunStore) GetTeacherByEmail(ctx context.Context, email string) (*model.Teacher, error) {
	const op = "GetTeacherByEmail"
	if email == "" {
		return nil, malformed(op, errors.New("email is required"))
	}
	t, err := GetTeacherByEmailBun(ctx, s.bun, email)
	if err != nil {
		return nil, opError(op, err)
	}
	return t, nil
}

type classInput struct {
	ClassName    string `validate:"required,max=100"`
	TeacherID    *int   `validate:"omitempty,gt=0"`
	AcademicYear string `validate:"required,max=20"`
}

func (s *BunStore) AddClass(ctx context.Context, className string, teacherID *int, academicYear string) (int, error) {
	const op = "AddClass"
	if err := model.ValidateStruct(classInput{className, teacherID, academicYear}); err != nil {
		return 0, malformed(op, err)
	}
	id, err := AddClassBun(ctx, s.bun, className, teacherID, academicYear)
	return id, opError(op, err)
}

type studentInput struct {
	Name       string `validate:"required,max=100"`
	RollNumber string `validate:"required,max=50"`
	ClassID    int    `validate:"gt=0"`
}

func (s *BunStore) AddStudent(ctx context.Context, name, rollNumber string, classID int) (int, error) {
	const op = "AddStudent"
	if err := model.ValidateStruct(studentInput{name, rollNumber, classID}); err != nil {
		return 0, malformed(op, err)
	}
	id, err := AddStudentBun(ctx, s.bun, name, rollNumber, classID)
	return id, opError(op, err)
}

type examInput struct {
	ExamName   string    `validate:"required,max=200"`
	ClassID    int       `validate:"gt=0"`
	Subject    string    `validate:"required,max=100"`
	ExamDate   time.Time `validate:"required"`
	TotalMarks int       `validate:"gte=0"`
}

// AddExam creates an active exam. Only the calendar date of examDate is
// kept.
func (s *BunStore) AddExam(ctx context.Context, examName string, classID int, subject string, examDate time.Time, totalMarks int) (int, error) {
	const op = "AddExam"
	if err := model.ValidateStruct(examInput{examName, classID, subject, examDate, totalMarks}); err != nil {
		return 0, malformed(op, err)
	}
	y, m, d := examDate.Date()
	id, err := AddExamBun(ctx, s.bun, examName, classID, subject, time.Date(y, m, d, 0, 0, 0, 0, time.UTC), totalMarks)
	if err != nil {
		return 0, opError(op, err)
	}
	dbLogf("added exam %d %q for class %d", id, examName, classID)
	return id, nil
}

// SetExamDocuments stores the answer key and marking scheme of an exam.
// Either document may be empty; non-empty documents must be valid JSON.
func (s *BunStore) SetExamDocuments(ctx context.Context, examID int, answerKey, markingScheme json.RawMessage) error {
	const op = "SetExamDocuments"
	if examID <= 0 {
		return malformed(op, fmt.Errorf("invalid exam id %d", examID))
	}
	for name, doc := range map[string]json.RawMessage{"answer key": answerKey, "marking scheme": markingScheme} {
		if len(doc) > 0 && !json.Valid(doc) {
			return malformed(op, fmt.Errorf("%s is not valid JSON", name))
		}
	}
	err := WithTx(ctx, s.bun, func(ctx context.Context, tx bun.Tx) error {
		n, err := tx.NewSelect().Model((*ExamModel)(nil)).Where("exam_id = ?", examID).Count(ctx)
		if err != nil {
			return MapDBError(err)
		}
		if n == 0 {
			return &Error{Kind: ErrNotFound, Err: fmt.Errorf("exam %d", examID)}
		}
		_, err = SetExamDocumentsBun(ctx, tx, examID, answerKey, markingScheme)
		return err
	})
	return opError(op, err)
}

// GetExamResults lists every student with a script for the exam together
// with the script's aggregate marks, ordered by roll number. An exam
// without scripts yields an empty slice.
// GetExam loads one exam including its answer key and marking scheme.
func (s *BunStore) GetExam(ctx context.Context, examID int) (*model.Exam, error) {
	const op = "GetExam"
	if examID <= 0 {
		return nil, malformed(op, fmt.Errorf("invalid exam id %d", examID))
	}
	e, err := GetExamBun(ctx, s.bun, examID)
	if err != nil {
		return nil, opError(op, err)
	}
	return e, nil
}

func (s *BunStore) GetExamResults(ctx context.Context, examID int) ([]model.ExamResult, error) {
	const op = "GetExamResults"
	if examID <= 0 {
		return nil, malformed(op, fmt.Errorf("invalid exam id %d", examID))
	}
	res, err := GetExamResultsBun(ctx, s.bun, examID)
	if err != nil {
		return nil, opError(op, err)
	}
	return res, nil
}

type scriptInput struct {
	StudentID int    `validate:"gt=0"`
	ExamID    int    `validate:"gt=0"`
	PDFPath   string `validate:"required,max=500"`
}

// AddAnswerScript registers an uploaded script with status "uploaded". A
// second script for the same student and exam fails with ErrDuplicate.
func (s *BunStore) AddAnswerScript(ctx context.Context, studentID, examID int, pdfPath string) (int, error) {
	const op = "AddAnswerScript"
	if err := model.ValidateStruct(scriptInput{studentID, examID, pdfPath}); err != nil {
		return 0, malformed(op, err)
	}
	id, err := AddAnswerScriptBun(ctx, s.bun, studentID, examID, pdfPath)
	return id, opError(op, err)
}

type scriptTotalInput struct {
	ScriptID int             `validate:"gt=0"`
	Total    decimal.Decimal `validate:"marks"`
}

// RecordScriptTotal sets the aggregate marks of a script and marks it
// evaluated.
func (s *BunStore) RecordScriptTotal(ctx context.Context, scriptID int, total decimal.Decimal) error {
	const op = "RecordScriptTotal"
	if err := model.ValidateStruct(scriptTotalInput{scriptID, total}); err != nil {
		return malformed(op, err)
	}
	err := WithTx(ctx, s.bun, func(ctx context.Context, tx bun.Tx) error {
		ok, err := scriptExistsBun(ctx, tx, scriptID)
		if err != nil {
			return err
		}
		if !ok {
			return &Error{Kind: ErrNotFound, Err: fmt.Errorf("answer script %d", scriptID)}
		}
		return RecordScriptTotalBun(ctx, tx, scriptID, total, time.Now().UTC())
	})
	return opError(op, err)
}

// StoreEvaluationResults inserts one evaluated answer per element for the
// script, all or nothing. Every element is checked before the transaction
// starts. An empty batch does nothing.
func (s *BunStore) StoreEvaluationResults(ctx context.Context, scriptID int, evaluations []model.Evaluation) error {
	const op = "StoreEvaluationResults"
	if len(evaluations) == 0 {
		return nil
	}
	if scriptID <= 0 {
		return malformed(op, fmt.Errorf("invalid script id %d", scriptID))
	}
	for i, ev := range evaluations {
		if err := model.ValidateStruct(ev); err != nil {
			return malformed(op, fmt.Errorf("evaluation %d: %w", i, err))
		}
	}
	err := WithTx(ctx, s.bun, func(ctx context.Context, tx bun.Tx) error {
		return InsertEvaluationsBun(ctx, tx, scriptID, evaluations)
	})
	if err != nil {
		return opError(op, err)
	}
	dbLogf("stored %d evaluations for script %d", len(evaluations), scriptID)
	return nil
}

func (s *BunStore) ListEvaluatedAnswers(ctx context.Context, scriptID int) ([]model.EvaluatedAnswer, error) {
	const op = "ListEvaluatedAnswers"
	if scriptID <= 0 {
		return nil, malformed(op, fmt.Errorf("invalid script id %d", scriptID))
	}
	res, err := ListEvaluatedAnswersBun(ctx, s.bun, scriptID)
	if err != nil {
		return nil, opError(op, err)
	}
	return res, nil
}

func (s *BunStore) FlagAnomaly(ctx context.Context, in model.AnomalyInput) (int, error) {
	const op = "FlagAnomaly"
	if err := model.ValidateStruct(in); err != nil {
		return 0, malformed(op, err)
	}
	id, err := AddAnomalyFlagBun(ctx, s.bun, in)
	if err != nil {
		return 0, opError(op, err)
	}
	dbLogf("flagged script %d question %d (similarity %s)", in.ScriptID, in.QuestionNumber, in.SimilarityScore.StringFixed(2))
	return id, nil
}

func (s *BunStore) ListAnomalyFlags(ctx context.Context, scriptID int) ([]model.AnomalyFlag, error) {
	const op = "ListAnomalyFlags"
	if scriptID <= 0 {
		return nil, malformed(op, fmt.Errorf("invalid script id %d", scriptID))
	}
	res, err := ListAnomalyFlagsBun(ctx, s.bun, scriptID)
	if err != nil {
		return nil, opError(op, err)
	}
	return res, nil
}

// ExportData reads all tables inside a single transaction.
func (s *BunStore) ExportData(ctx context.Context) (*model.BackupData, error) {
	var data *model.BackupData
	err := WithTx(ctx, s.bun, func(ctx context.Context, tx bun.Tx) error {
		var err error
		data, err = ExportDataBun(ctx, tx)
		return err
	})
	if err != nil {
		return nil, opError("ExportData", err)
	}
	return data, nil
}

var _ Store = (*BunStore)(nil)
