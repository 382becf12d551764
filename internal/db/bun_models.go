// Copyright (c) 2026 Markbook Team
// Markbook - exam evaluation tracking store
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/toeirei/markbook/internal/model"
	"github.com/uptrace/bun"
)

// TeacherModel maps the teachers table.
type TeacherModel struct {
	bun.BaseModel `bun:"table:teachers"`
	ID            int          `bun:"teacher_id,pk,autoincrement"`
	Name          string       `bun:"name"`
	Email         string       `bun:"email"`
	PasswordHash  string       `bun:"password_hash"`
	CreatedAt     sql.NullTime `bun:"created_at"`
}

// ClassModel maps the classes table.
type ClassModel struct {
	bun.BaseModel `bun:"table:classes"`
	ID            int           `bun:"class_id,pk,autoincrement"`
	Name          string        `bun:"class_name"`
	TeacherID     sql.NullInt64 `bun:"teacher_id"`
	AcademicYear  string        `bun:"academic_year"`
	CreatedAt     sql.NullTime  `bun:"created_at"`
}

// StudentModel maps the students table.
type StudentModel struct {
	bun.BaseModel `bun:"table:students"`
	ID            int           `bun:"student_id,pk,autoincrement"`
	Name          string        `bun:"name"`
	RollNumber    string        `bun:"roll_number"`
	ClassID       sql.NullInt64 `bun:"class_id"`
	CreatedAt     sql.NullTime  `bun:"created_at"`
}

// ExamModel maps the exams table. The JSON document columns are kept as
// text so the same model works for JSONB, JSON and TEXT columns.
type ExamModel struct {
	bun.BaseModel `bun:"table:exams"`
	ID            int            `bun:"exam_id,pk,autoincrement"`
	Name          string         `bun:"exam_name"`
	ClassID       sql.NullInt64  `bun:"class_id"`
	Subject       string         `bun:"subject"`
	ExamDate      time.Time      `bun:"exam_date"`
	TotalMarks    int            `bun:"total_marks"`
	AnswerKey     sql.NullString `bun:"answer_key_json"`
	MarkingScheme sql.NullString `bun:"marking_scheme_json"`
	IsActive      sql.NullBool   `bun:"is_active"`
	CreatedAt     sql.NullTime   `bun:"created_at"`
}

// AnswerScriptModel maps the answer_scripts table.
type AnswerScriptModel struct {
	bun.BaseModel      `bun:"table:answer_scripts"`
	ID                 int                 `bun:"script_id,pk,autoincrement"`
	StudentID          sql.NullInt64       `bun:"student_id"`
	ExamID             sql.NullInt64       `bun:"exam_id"`
	PDFPath            string              `bun:"pdf_path"`
	UploadDate         sql.NullTime        `bun:"upload_date"`
	TotalObtainedMarks decimal.NullDecimal `bun:"total_obtained_marks"`
	EvaluatedAt        sql.NullTime        `bun:"evaluated_at"`
	Status             sql.NullString      `bun:"status"`
}

// EvaluatedAnswerModel maps the evaluated_answers table.
type EvaluatedAnswerModel struct {
	bun.BaseModel   `bun:"table:evaluated_answers"`
	ID              int                 `bun:"eval_id,pk,autoincrement"`
	ScriptID        sql.NullInt64       `bun:"script_id"`
	QuestionNumber  int                 `bun:"question_number"`
	QuestionType    string              `bun:"question_type"`
	ExtractedText   sql.NullString      `bun:"extracted_text"`
	MarksObtained   decimal.NullDecimal `bun:"marks_obtained"`
	MaxMarks        decimal.NullDecimal `bun:"max_marks"`
	ConfidenceScore decimal.NullDecimal `bun:"confidence_score"`
	NeedsReview     sql.NullBool        `bun:"needs_review"`
	Feedback        sql.NullString      `bun:"feedback"`
	CreatedAt       sql.NullTime        `bun:"created_at"`
}

// AnomalyFlagModel maps the anomaly_flags table.
type AnomalyFlagModel struct {
	bun.BaseModel   `bun:"table:anomaly_flags"`
	ID              int                 `bun:"flag_id,pk,autoincrement"`
	ScriptID        sql.NullInt64       `bun:"script_id"`
	QuestionNumber  int                 `bun:"question_number"`
	SimilarityScore decimal.NullDecimal `bun:"similarity_score"`
	SimilarScriptID sql.NullInt64       `bun:"similar_script_id"`
	FlagReason      sql.NullString      `bun:"flag_reason"`
	Resolved        sql.NullBool        `bun:"resolved"`
	CreatedAt       sql.NullTime        `bun:"created_at"`
}

// examResultRow is the shape of the results join.
type examResultRow struct {
	StudentName        string              `bun:"student_name"`
	RollNumber         string              `bun:"roll_number"`
	TotalObtainedMarks decimal.NullDecimal `bun:"total_obtained_marks"`
}

// --- Mapping helpers (centralized conversions) ---

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullJSON(doc json.RawMessage) sql.NullString {
	if len(doc) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(doc), Valid: true}
}

func rawJSON(s sql.NullString) json.RawMessage {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.RawMessage(s.String)
}

func timeOrZero(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time
}

func decimalOrZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

func teacherModelToModel(t TeacherModel) model.Teacher {
	return model.Teacher{
		ID:           t.ID,
		Name:         t.Name,
		Email:        t.Email,
		PasswordHash: t.PasswordHash,
		CreatedAt:    timeOrZero(t.CreatedAt),
	}
}

func classModelToModel(c ClassModel) model.Class {
	return model.Class{
		ID:           c.ID,
		Name:         c.Name,
		TeacherID:    intPtr(c.TeacherID),
		AcademicYear: c.AcademicYear,
		CreatedAt:    timeOrZero(c.CreatedAt),
	}
}

func studentModelToModel(s StudentModel) model.Student {
	return model.Student{
		ID:         s.ID,
		Name:       s.Name,
		RollNumber: s.RollNumber,
		ClassID:    intPtr(s.ClassID),
		CreatedAt:  timeOrZero(s.CreatedAt),
	}
}

func examModelToModel(e ExamModel) model.Exam {
	return model.Exam{
		ID:            e.ID,
		Name:          e.Name,
		ClassID:       intPtr(e.ClassID),
		Subject:       e.Subject,
		ExamDate:      e.ExamDate,
		TotalMarks:    e.TotalMarks,
		AnswerKey:     rawJSON(e.AnswerKey),
		MarkingScheme: rawJSON(e.MarkingScheme),
		IsActive:      !e.IsActive.Valid || e.IsActive.Bool,
		CreatedAt:     timeOrZero(e.CreatedAt),
	}
}

func answerScriptModelToModel(a AnswerScriptModel) model.AnswerScript {
	s := model.AnswerScript{
		ID:                 a.ID,
		StudentID:          intPtr(a.StudentID),
		ExamID:             intPtr(a.ExamID),
		PDFPath:            a.PDFPath,
		UploadDate:         timeOrZero(a.UploadDate),
		TotalObtainedMarks: a.TotalObtainedMarks,
		Status:             model.ScriptStatusUploaded,
	}
	if a.EvaluatedAt.Valid {
		t := a.EvaluatedAt.Time
		s.EvaluatedAt = &t
	}
	if a.Status.Valid {
		s.Status = a.Status.String
	}
	return s
}

func evaluatedAnswerModelToModel(e EvaluatedAnswerModel) model.EvaluatedAnswer {
	return model.EvaluatedAnswer{
		ID:              e.ID,
		ScriptID:        int(e.ScriptID.Int64),
		QuestionNumber:  e.QuestionNumber,
		QuestionType:    e.QuestionType,
		ExtractedText:   e.ExtractedText.String,
		MarksObtained:   decimalOrZero(e.MarksObtained),
		MaxMarks:        decimalOrZero(e.MaxMarks),
		ConfidenceScore: decimalOrZero(e.ConfidenceScore),
		NeedsReview:     e.NeedsReview.Bool,
		Feedback:        e.Feedback.String,
		CreatedAt:       timeOrZero(e.CreatedAt),
	}
}

func evaluationToModel(scriptID int, ev model.Evaluation) *EvaluatedAnswerModel {
	return &EvaluatedAnswerModel{
		ScriptID:        sql.NullInt64{Int64: int64(scriptID), Valid: true},
		QuestionNumber:  ev.QuestionNumber,
		QuestionType:    ev.QuestionType,
		ExtractedText:   sql.NullString{String: ev.ExtractedText, Valid: true},
		MarksObtained:   decimal.NewNullDecimal(ev.MarksObtained.Round(2)),
		MaxMarks:        decimal.NewNullDecimal(ev.MaxMarks.Round(2)),
		ConfidenceScore: decimal.NewNullDecimal(ev.ConfidenceScore.Round(2)),
		NeedsReview:     sql.NullBool{Bool: ev.NeedsReview, Valid: true},
		Feedback:        sql.NullString{String: ev.Feedback, Valid: true},
	}
}

func anomalyFlagModelToModel(a AnomalyFlagModel) model.AnomalyFlag {
	return model.AnomalyFlag{
		ID:              a.ID,
		ScriptID:        int(a.ScriptID.Int64),
		QuestionNumber:  a.QuestionNumber,
		SimilarityScore: decimalOrZero(a.SimilarityScore),
		SimilarScriptID: intPtr(a.SimilarScriptID),
		FlagReason:      a.FlagReason.String,
		Resolved:        a.Resolved.Bool,
		CreatedAt:       timeOrZero(a.CreatedAt),
	}
}
