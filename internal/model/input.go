// Copyright (c) 2026 Markbook Team
// Markbook - exam evaluation tracking store
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import (
	"github.com/shopspring/decimal"
)

// Evaluation is one per-question result handed to the store by the
// evaluation pipeline. Field names follow the evaluated_answers columns so
// the same structure can be decoded from YAML or JSON files.
type Evaluation struct {
	QuestionNumber  int             `json:"question_number" yaml:"question_number" validate:"gte=0"`
	QuestionType    string          `json:"question_type" yaml:"question_type" validate:"required,max=50"`
	ExtractedText   string          `json:"extracted_text" yaml:"extracted_text"`
	MarksObtained   decimal.Decimal `json:"marks_obtained" yaml:"marks_obtained" validate:"marks"`
	MaxMarks        decimal.Decimal `json:"max_marks" yaml:"max_marks" validate:"marks"`
	ConfidenceScore decimal.Decimal `json:"confidence_score" yaml:"confidence_score" validate:"score"`
	NeedsReview     bool            `json:"needs_review" yaml:"needs_review"`
	Feedback        string          `json:"feedback" yaml:"feedback"`
}

// AnomalyInput describes a new anomaly flag.
type AnomalyInput struct {
	ScriptID        int             `validate:"gt=0"`
	QuestionNumber  int             `validate:"gte=0"`
	SimilarityScore decimal.Decimal `validate:"score"`
	SimilarScriptID *int            `validate:"omitempty,gt=0"`
	FlagReason      string          `validate:"max=200"`
}

// EvaluationRecord is the on-disk form of an Evaluation. The numeric fields
// are pointers so an entry that omits them is rejected instead of being
// stored as zero.
type EvaluationRecord struct {
	QuestionNumber  *int             `json:"question_number" validate:"required"`
	QuestionType    string           `json:"question_type" validate:"required"`
	ExtractedText   string           `json:"extracted_text"`
	MarksObtained   *decimal.Decimal `json:"marks_obtained" validate:"required"`
	MaxMarks        *decimal.Decimal `json:"max_marks" validate:"required"`
	ConfidenceScore *decimal.Decimal `json:"confidence_score" validate:"required"`
	NeedsReview     bool             `json:"needs_review"`
	Feedback        string           `json:"feedback"`
}

// Evaluation converts a record that passed validation. Range checks are left
// to the store, which validates every Evaluation it writes.
func (r EvaluationRecord) Evaluation() Evaluation {
	e := Evaluation{
		QuestionType:  r.QuestionType,
		ExtractedText: r.ExtractedText,
		NeedsReview:   r.NeedsReview,
		Feedback:      r.Feedback,
	}
	if r.QuestionNumber != nil {
		e.QuestionNumber = *r.QuestionNumber
	}
	if r.MarksObtained != nil {
		e.MarksObtained = *r.MarksObtained
	}
	if r.MaxMarks != nil {
		e.MaxMarks = *r.MaxMarks
	}
	if r.ConfidenceScore != nil {
		e.ConfidenceScore = *r.ConfidenceScore
	}
	return e
}
