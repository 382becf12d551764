// Copyright (c) 2026 Markbook Team
// Markbook - exam evaluation tracking store
// This source code is licensed under the MIT license found in the LICENSE file.

// Package model holds the plain data types shared by the store, the CLI and
// the export code. Nothing in here talks to a database.
package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Script statuses written by the gateway. The column itself is free text.
const (
	ScriptStatusUploaded  = "uploaded"
	ScriptStatusEvaluated = "evaluated"
)

// Teacher owns classes. PasswordHash is stored as given; hashing is the
// caller's job.
type Teacher struct {
	ID           int       `json:"teacher_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// Class is a group of students taught by one teacher in one academic year.
// TeacherID is nil when the class has no owner.
type Class struct {
	ID           int       `json:"class_id"`
	Name         string    `json:"class_name"`
	TeacherID    *int      `json:"teacher_id,omitempty"`
	AcademicYear string    `json:"academic_year"`
	CreatedAt    time.Time `json:"created_at"`
}

// Student belongs to a class and is identified by a globally unique roll number.
type Student struct {
	ID         int       `json:"student_id"`
	Name       string    `json:"name"`
	RollNumber string    `json:"roll_number"`
	ClassID    *int      `json:"class_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s Student) String() string {
	return fmt.Sprintf("%s (%s)", s.Name, s.RollNumber)
}

// Exam is a sitting for one class and subject. AnswerKey and MarkingScheme
// are schema-free JSON documents and may be empty.
type Exam struct {
	ID            int             `json:"exam_id"`
	Name          string          `json:"exam_name"`
	ClassID       *int            `json:"class_id,omitempty"`
	Subject       string          `json:"subject"`
	ExamDate      time.Time       `json:"exam_date"`
	TotalMarks    int             `json:"total_marks"`
	AnswerKey     json.RawMessage `json:"answer_key_json,omitempty"`
	MarkingScheme json.RawMessage `json:"marking_scheme_json,omitempty"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
}

// AnswerScript is one student's uploaded answer document for one exam.
// TotalObtainedMarks and EvaluatedAt stay unset until evaluation finishes.
type AnswerScript struct {
	ID                 int                 `json:"script_id"`
	StudentID          *int                `json:"student_id,omitempty"`
	ExamID             *int                `json:"exam_id,omitempty"`
	PDFPath            string              `json:"pdf_path"`
	UploadDate         time.Time           `json:"upload_date"`
	TotalObtainedMarks decimal.NullDecimal `json:"total_obtained_marks"`
	EvaluatedAt        *time.Time          `json:"evaluated_at,omitempty"`
	Status             string              `json:"status"`
}

// EvaluatedAnswer is the stored scoring result for one question of a script.
type EvaluatedAnswer struct {
	ID              int             `json:"eval_id"`
	ScriptID        int             `json:"script_id"`
	QuestionNumber  int             `json:"question_number"`
	QuestionType    string          `json:"question_type"`
	ExtractedText   string          `json:"extracted_text"`
	MarksObtained   decimal.Decimal `json:"marks_obtained"`
	MaxMarks        decimal.Decimal `json:"max_marks"`
	ConfidenceScore decimal.Decimal `json:"confidence_score"`
	NeedsReview     bool            `json:"needs_review"`
	Feedback        string          `json:"feedback"`
	CreatedAt       time.Time       `json:"created_at"`
}

// AnomalyFlag records a suspected similarity between two scripts' answers
// to the same question.
type AnomalyFlag struct {
	ID              int             `json:"flag_id"`
	ScriptID        int             `json:"script_id"`
	QuestionNumber  int             `json:"question_number"`
	SimilarityScore decimal.Decimal `json:"similarity_score"`
	SimilarScriptID *int            `json:"similar_script_id,omitempty"`
	FlagReason      string          `json:"flag_reason"`
	Resolved        bool            `json:"resolved"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ExamResult is one row of the per-exam dashboard: a student and the
// aggregate marks of their script. TotalObtainedMarks is invalid (null)
// while the script has not been evaluated.
type ExamResult struct {
	StudentName        string              `json:"student_name"`
	RollNumber         string              `json:"roll_number"`
	TotalObtainedMarks decimal.NullDecimal `json:"total_obtained_marks"`
}

// MarksString renders the aggregate marks, or "-" when not yet evaluated.
func (r ExamResult) MarksString() string {
	if !r.TotalObtainedMarks.Valid {
		return "-"
	}
	return r.TotalObtainedMarks.Decimal.StringFixed(2)
}
