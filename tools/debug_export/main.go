// debug_export prints a per-table summary of a Markbook export file. Without
// an argument it seeds an in-memory store with a small exam and summarizes
// its snapshot instead, which is handy when checking the export format.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
	"github.com/toeirei/markbook/internal/db"
	"github.com/toeirei/markbook/internal/export"
	"github.com/toeirei/markbook/internal/model"
)

func main() {
	var (
		data *model.BackupData
		err  error
	)
	if len(os.Args) > 1 {
		data, err = export.ReadFile(os.Args[1])
	} else {
		data, err = probe(context.Background())
	}
	if err != nil {
		log.Fatal("debug export failed", "err", err)
	}
	summarize(os.Stdout, data)
}

// probe builds a throwaway store with one evaluated script and exports it.
func probe(ctx context.Context) (*model.BackupData, error) {
	store, err := db.NewStoreFromDSN("sqlite", "file:debprobe?mode=memory&cache=shared")
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()
	if err := store.InitializeSchema(ctx); err != nil {
		return nil, err
	}

	teacherID, err := store.AddTeacher(ctx, "Probe Teacher", "probe@example.org", "not-a-real-hash")
	if err != nil {
		return nil, err
	}
	classID, err := store.AddClass(ctx, "Probe Class", &teacherID, "2026-27")
	if err != nil {
		return nil, err
	}
	studentID, err := store.AddStudent(ctx, "Probe Student", "P-001", classID)
	if err != nil {
		return nil, err
	}
	examID, err := store.AddExam(ctx, "Probe Exam", classID, "Probing", time.Now(), 10)
	if err != nil {
		return nil, err
	}
	scriptID, err := store.AddAnswerScript(ctx, studentID, examID, "/tmp/probe.pdf")
	if err != nil {
		return nil, err
	}
	err = store.StoreEvaluationResults(ctx, scriptID, []model.Evaluation{{
		QuestionNumber:  1,
		QuestionType:    "mcq",
		MarksObtained:   decimal.NewFromInt(1),
		MaxMarks:        decimal.NewFromInt(1),
		ConfidenceScore: decimal.RequireFromString("0.99"),
	}})
	if err != nil {
		return nil, err
	}
	if err := store.RecordScriptTotal(ctx, scriptID, decimal.NewFromInt(1)); err != nil {
		return nil, err
	}
	return store.ExportData(ctx)
}

func summarize(w io.Writer, data *model.BackupData) {
	fmt.Fprintf(w, "schema version: %s\n", data.SchemaVersion)
	fmt.Fprintf(w, "exported at:    %s\n", data.ExportedAt.Format(time.RFC3339))
	rows := []struct {
		table string
		n     int
	}{
		{"teachers", len(data.Teachers)},
		{"classes", len(data.Classes)},
		{"students", len(data.Students)},
		{"exams", len(data.Exams)},
		{"answer_scripts", len(data.AnswerScripts)},
		{"evaluated_answers", len(data.EvaluatedAnswers)},
		{"anomaly_flags", len(data.AnomalyFlags)},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%-18s %d\n", r.table+":", r.n)
	}
	fmt.Fprintf(w, "total rows:        %d\n", data.RowCount())
}
