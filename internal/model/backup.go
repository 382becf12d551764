// Copyright (c) 2026 Markbook Team
// Markbook - exam evaluation tracking store
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import "time"

// BackupData is a container for all data exported from the store.
type BackupData struct {
	// SchemaVersion is the highest applied migration at export time.
	SchemaVersion string    `json:"schema_version"`
	ExportedAt    time.Time `json:"exported_at"`

	Teachers         []Teacher         `json:"teachers"`
	Classes          []Class           `json:"classes"`
	Students         []Student         `json:"students"`
	Exams            []Exam            `json:"exams"`
	AnswerScripts    []AnswerScript    `json:"answer_scripts"`
	EvaluatedAnswers []EvaluatedAnswer `json:"evaluated_answers"`
	AnomalyFlags     []AnomalyFlag     `json:"anomaly_flags"`
}

// RowCount returns the number of rows across all tables.
func (b *BackupData) RowCount() int {
	if b == nil {
		return 0
	}
	return len(b.Teachers) + len(b.Classes) + len(b.Students) + len(b.Exams) +
		len(b.AnswerScripts) + len(b.EvaluatedAnswers) + len(b.AnomalyFlags)
}
