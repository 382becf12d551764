// Copyright (c) 2026 Markbook Team
// Markbook - exam evaluation tracking store
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/toeirei/markbook/internal/model"
	"github.com/uptrace/bun"
)

// Store defines every persisted operation Markbook performs. All access to
// the evaluation tables goes through it.
type Store interface {
	// Schema
	InitializeSchema(ctx context.Context) error

	// Teacher methods
	AddTeacher(ctx context.Context, name, email, passwordHash string) (int, error)
	GetTeacherByEmail(ctx context.Context, email string) (*model.Teacher, error)

	// Class and student methods
	AddClass(ctx context.Context, className string, teacherID *int, academicYear string) (int, error)
	AddStudent(ctx context.Context, name, rollNumber string, classID int) (int, error)

	// Exam methods
	AddExam(ctx context.Context, examName string, classID int, subject string, examDate time.Time, totalMarks int) (int, error)
	SetExamDocuments(ctx context.Context, examID int, answerKey, markingScheme json.RawMessage) error
	GetExam(ctx context.Context, examID int) (*model.Exam, error)
	GetExamResults(ctx context.Context, examID int) ([]model.ExamResult, error)

	// Answer script methods
	AddAnswerScript(ctx context.Context, studentID, examID int, pdfPath string) (int, error)
	RecordScriptTotal(ctx context.Context, scriptID int, total decimal.Decimal) error

	// Evaluation methods
	StoreEvaluationResults(ctx context.Context, scriptID int, evaluations []model.Evaluation) error
	ListEvaluatedAnswers(ctx context.Context, scriptID int) ([]model.EvaluatedAnswer, error)

	// Anomaly methods
	FlagAnomaly(ctx context.Context, in model.AnomalyInput) (int, error)
	ListAnomalyFlags(ctx context.Context, scriptID int) ([]model.AnomalyFlag, error)

	// Export
	ExportData(ctx context.Context) (*model.BackupData, error)

	BunDB() *bun.DB
	Close() error
}
