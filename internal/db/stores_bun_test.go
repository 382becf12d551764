// Copyright (c) 2026 Markbook Team
// Markbook - exam evaluation tracking store
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toeirei/markbook/internal/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAddTeacher_LookupByEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.AddTeacher(ctx, "Grace Hopper", "grace@example.org", "$2a$10$abc")
	require.NoError(t, err)
	assert.Greater(t, id, 0)

	got, err := s.GetTeacherByEmail(ctx, "grace@example.org")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "Grace Hopper", got.Name)
	assert.Equal(t, "$2a$10$abc", got.PasswordHash)
	assert.False(t, got.CreatedAt.IsZero(), "created_at should default")
}

func TestGetTeacherByEmail_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetTeacherByEmail(context.Background(), "nobody@example.org")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "GetTeacherByEmail", se.Op)
}

func TestAddTeacher_DuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	firstID, err := s.AddTeacher(ctx, "First", "dup@example.org", "h1")
	require.NoError(t, err)

	_, err = s.AddTeacher(ctx, "Second", "dup@example.org", "h2")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.ErrorIs(t, err, ErrConstraint)

	got, err := s.GetTeacherByEmail(ctx, "dup@example.org")
	require.NoError(t, err)
	assert.Equal(t, firstID, got.ID)
	assert.Equal(t, "First", got.Name)
	assert.Equal(t, "h1", got.PasswordHash)
	assert.Equal(t, 1, countRows(t, s, "teachers"))
}

func TestAddTeacher_MissingFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cases := []struct{ name, email, hash string }{
		{"", "a@example.org", "h"},
		{"A", "", "h"},
		{"A", "a@example.org", ""},
		{strings.Repeat("x", 101), "a@example.org", "h"},
	}
	for _, c := range cases {
		_, err := s.AddTeacher(ctx, c.name, c.email, c.hash)
		assert.ErrorIs(t, err, ErrMalformedInput)
	}
	assert.Equal(t, 0, countRows(t, s, "teachers"))
}

func TestAddExam_UnknownClass(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddExam(context.Background(), "Final", 4242, "Maths", time.Now(), 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForeignKey)
	assert.ErrorIs(t, err, ErrConstraint)
	assert.Equal(t, 0, countRows(t, s, "exams"))
}

func TestAddExam_MalformedInput(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	_, err := s.AddExam(ctx, "", f.ClassID, "Maths", time.Now(), 100)
	assert.ErrorIs(t, err, ErrMalformedInput)
	_, err = s.AddExam(ctx, "Quiz", f.ClassID, "Maths", time.Time{}, 100)
	assert.ErrorIs(t, err, ErrMalformedInput)
	_, err = s.AddExam(ctx, "Quiz", 0, "Maths", time.Now(), 100)
	assert.ErrorIs(t, err, ErrMalformedInput)
	assert.Equal(t, 1, countRows(t, s, "exams"))
}

func TestAddExam_StoresDateAndDefaults(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)

	data, err := s.ExportData(context.Background())
	require.NoError(t, err)
	require.Len(t, data.Exams, 1)
	e := data.Exams[0]
	assert.Equal(t, f.ExamID, e.ID)
	assert.Equal(t, "2026-03-14", e.ExamDate.Format("2006-01-02"))
	assert.True(t, e.IsActive)
	assert.Equal(t, 100, e.TotalMarks)
	assert.Nil(t, e.AnswerKey)
	require.NotNil(t, e.ClassID)
	assert.Equal(t, f.ClassID, *e.ClassID)
}

func TestAddClassAndStudent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	classID, err := s.AddClass(ctx, "Unowned", nil, "2025-2026")
	require.NoError(t, err)

	_, err = s.AddClass(ctx, "Ghost", intRef(999), "2025-2026")
	assert.ErrorIs(t, err, ErrForeignKey)

	_, err = s.AddStudent(ctx, "Carol", "R100", classID)
	require.NoError(t, err)
	_, err = s.AddStudent(ctx, "Carol Again", "R100", classID)
	assert.ErrorIs(t, err, ErrDuplicate)
	_, err = s.AddStudent(ctx, "Dan", "R101", 999)
	assert.ErrorIs(t, err, ErrForeignKey)

	data, err := s.ExportData(ctx)
	require.NoError(t, err)
	require.Len(t, data.Classes, 1)
	assert.Nil(t, data.Classes[0].TeacherID)
	require.Len(t, data.Students, 1)
	assert.Equal(t, "Carol (R100)", data.Students[0].String())
}

func TestStoreEvaluationResults_Empty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreEvaluationResults(ctx, 1, nil))
	require.NoError(t, s.StoreEvaluationResults(ctx, 1, []model.Evaluation{}))
	assert.Equal(t, 0, countRows(t, s, "evaluated_answers"))
}

func TestStoreEvaluationResults_StoresAll(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	scriptID, err := s.AddAnswerScript(ctx, f.StudentA, f.ExamID, "/scripts/alice.pdf")
	require.NoError(t, err)

	evals := []model.Evaluation{
		{QuestionNumber: 2, QuestionType: "short", ExtractedText: "F = ma", MarksObtained: d("7.255"), MaxMarks: d("10"), ConfidenceScore: d("0.876"), Feedback: "good"},
		{QuestionNumber: 1, QuestionType: "mcq", ExtractedText: "B", MarksObtained: d("1"), MaxMarks: d("1"), ConfidenceScore: d("0.99")},
		{QuestionNumber: 3, QuestionType: "essay", ExtractedText: "...", MarksObtained: d("12.5"), MaxMarks: d("20"), ConfidenceScore: d("0.4"), NeedsReview: true, Feedback: "check"},
	}
	require.NoError(t, s.StoreEvaluationResults(ctx, scriptID, evals))
	assert.Equal(t, 3, countRows(t, s, "evaluated_answers"))

	got, err := s.ListEvaluatedAnswers(ctx, scriptID)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, 1, got[0].QuestionNumber)
	assert.Equal(t, "mcq", got[0].QuestionType)

	q2 := got[1]
	assert.Equal(t, scriptID, q2.ScriptID)
	assert.Equal(t, 2, q2.QuestionNumber)
	assert.Equal(t, "short", q2.QuestionType)
	assert.Equal(t, "F = ma", q2.ExtractedText)
	assert.True(t, q2.MarksObtained.Equal(d("7.26")), "marks rounded to 2 places, got %s", q2.MarksObtained)
	assert.True(t, q2.MaxMarks.Equal(d("10")), "got %s", q2.MaxMarks)
	assert.True(t, q2.ConfidenceScore.Equal(d("0.88")), "got %s", q2.ConfidenceScore)
	assert.False(t, q2.NeedsReview)
	assert.Equal(t, "good", q2.Feedback)

	q3 := got[2]
	assert.True(t, q3.NeedsReview)
	assert.True(t, q3.MarksObtained.Equal(d("12.50")))
	for _, ea := range got {
		assert.Equal(t, scriptID, ea.ScriptID)
	}
}

func TestStoreEvaluationResults_AtomicOnBadElement(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	scriptID, err := s.AddAnswerScript(ctx, f.StudentA, f.ExamID, "/scripts/alice.pdf")
	require.NoError(t, err)

	evals := []model.Evaluation{
		{QuestionNumber: 1, QuestionType: "mcq", MarksObtained: d("1"), MaxMarks: d("1"), ConfidenceScore: d("0.9")},
		{QuestionNumber: 2, QuestionType: "mcq", MarksObtained: d("1"), MaxMarks: d("1"), ConfidenceScore: d("1.5")},
	}
	err = s.StoreEvaluationResults(ctx, scriptID, evals)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedInput)

	evals[1].ConfidenceScore = d("0.5")
	evals[1].QuestionType = ""
	assert.ErrorIs(t, s.StoreEvaluationResults(ctx, scriptID, evals), ErrMalformedInput)

	assert.Equal(t, 0, countRows(t, s, "evaluated_answers"))
}

func TestStoreEvaluationResults_UnknownScriptRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	evals := []model.Evaluation{
		{QuestionNumber: 1, QuestionType: "mcq", MarksObtained: d("1"), MaxMarks: d("1"), ConfidenceScore: d("0.9")},
		{QuestionNumber: 2, QuestionType: "mcq", MarksObtained: d("0"), MaxMarks: d("1"), ConfidenceScore: d("0.8")},
	}
	err := s.StoreEvaluationResults(ctx, 777, evals)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForeignKey)
	assert.Equal(t, 0, countRows(t, s, "evaluated_answers"))
}

func TestStoreEvaluationResults_RollsBackOnMidBatchFailure(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	scriptID, err := s.AddAnswerScript(ctx, f.StudentA, f.ExamID, "/scripts/alice.pdf")
	require.NoError(t, err)
	// The first row is written before the database refuses the second.
	_, err = ExecRaw(ctx, s.BunDB(), `CREATE TRIGGER reject_question_two BEFORE INSERT ON evaluated_answers
WHEN NEW.question_number = 2
BEGIN SELECT RAISE(ABORT, 'question 2 rejected'); END`)
	require.NoError(t, err)

	evals := []model.Evaluation{
		{QuestionNumber: 1, QuestionType: "mcq", MarksObtained: d("1"), MaxMarks: d("1"), ConfidenceScore: d("0.9")},
		{QuestionNumber: 2, QuestionType: "mcq", MarksObtained: d("1"), MaxMarks: d("1"), ConfidenceScore: d("0.9")},
	}
	err = s.StoreEvaluationResults(ctx, scriptID, evals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "question 2 rejected")
	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "StoreEvaluationResults", se.Op)
	assert.Equal(t, 0, countRows(t, s, "evaluated_answers"))
}

func TestStoreEvaluationResults_NegativeMarking(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	scriptID, err := s.AddAnswerScript(ctx, f.StudentA, f.ExamID, "/scripts/alice.pdf")
	require.NoError(t, err)
	evals := []model.Evaluation{
		{QuestionNumber: 1, QuestionType: "mcq", MarksObtained: d("-0.25"), MaxMarks: d("1"), ConfidenceScore: d("0.97")},
	}
	require.NoError(t, s.StoreEvaluationResults(ctx, scriptID, evals))

	got, err := s.ListEvaluatedAnswers(ctx, scriptID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].MarksObtained.Equal(d("-0.25")), "got %s", got[0].MarksObtained)

	evals[0].MarksObtained = d("-1000")
	assert.ErrorIs(t, s.StoreEvaluationResults(ctx, scriptID, evals), ErrMalformedInput)
}

func TestGetExamResults(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	scriptA, err := s.AddAnswerScript(ctx, f.StudentA, f.ExamID, "/scripts/a.pdf")
	require.NoError(t, err)
	_, err = s.AddAnswerScript(ctx, f.StudentB, f.ExamID, "/scripts/b.pdf")
	require.NoError(t, err)
	require.NoError(t, s.RecordScriptTotal(ctx, scriptA, d("85.50")))

	res, err := s.GetExamResults(ctx, f.ExamID)
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.Equal(t, "Alice", res[0].StudentName)
	assert.Equal(t, "R001", res[0].RollNumber)
	require.True(t, res[0].TotalObtainedMarks.Valid)
	assert.True(t, res[0].TotalObtainedMarks.Decimal.Equal(d("85.50")))
	assert.Equal(t, "85.50", res[0].MarksString())

	assert.Equal(t, "Bob", res[1].StudentName)
	assert.Equal(t, "R002", res[1].RollNumber)
	assert.False(t, res[1].TotalObtainedMarks.Valid)
	assert.Equal(t, "-", res[1].MarksString())
}

func TestGetExamResults_NoScripts(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)

	res, err := s.GetExamResults(context.Background(), f.ExamID)
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Empty(t, res)

	res, err = s.GetExamResults(context.Background(), 9999)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestAddAnswerScript_OnePerStudentAndExam(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	_, err := s.AddAnswerScript(ctx, f.StudentA, f.ExamID, "/scripts/a.pdf")
	require.NoError(t, err)
	_, err = s.AddAnswerScript(ctx, f.StudentA, f.ExamID, "/scripts/a-retry.pdf")
	assert.ErrorIs(t, err, ErrDuplicate)
	_, err = s.AddAnswerScript(ctx, f.StudentA, 31337, "/scripts/x.pdf")
	assert.ErrorIs(t, err, ErrForeignKey)
	_, err = s.AddAnswerScript(ctx, f.StudentB, f.ExamID, "")
	assert.ErrorIs(t, err, ErrMalformedInput)

	data, err := s.ExportData(ctx)
	require.NoError(t, err)
	require.Len(t, data.AnswerScripts, 1)
	sc := data.AnswerScripts[0]
	assert.Equal(t, model.ScriptStatusUploaded, sc.Status)
	assert.False(t, sc.TotalObtainedMarks.Valid)
	assert.Nil(t, sc.EvaluatedAt)
	assert.False(t, sc.UploadDate.IsZero())
}

func TestRecordScriptTotal(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	err := s.RecordScriptTotal(ctx, 404, d("10"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.RecordScriptTotal(ctx, 1, d("1000")), ErrMalformedInput)
	assert.ErrorIs(t, s.RecordScriptTotal(ctx, 1, d("-1000")), ErrMalformedInput)

	scriptID, err := s.AddAnswerScript(ctx, f.StudentA, f.ExamID, "/scripts/a.pdf")
	require.NoError(t, err)
	require.NoError(t, s.RecordScriptTotal(ctx, scriptID, d("72.125")))

	data, err := s.ExportData(ctx)
	require.NoError(t, err)
	require.Len(t, data.AnswerScripts, 1)
	sc := data.AnswerScripts[0]
	assert.Equal(t, model.ScriptStatusEvaluated, sc.Status)
	require.True(t, sc.TotalObtainedMarks.Valid)
	assert.True(t, sc.TotalObtainedMarks.Decimal.Equal(d("72.13")), "got %s", sc.TotalObtainedMarks.Decimal)
	assert.NotNil(t, sc.EvaluatedAt)
}

func TestSetExamDocuments(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	key := json.RawMessage(`{"1":"B","2":"F = ma"}`)
	scheme := json.RawMessage(`{"1":{"marks":1},"2":{"marks":10,"partial":true}}`)
	require.NoError(t, s.SetExamDocuments(ctx, f.ExamID, key, scheme))

	assert.ErrorIs(t, s.SetExamDocuments(ctx, f.ExamID, json.RawMessage(`{oops`), nil), ErrMalformedInput)
	assert.ErrorIs(t, s.SetExamDocuments(ctx, 5150, key, nil), ErrNotFound)

	data, err := s.ExportData(ctx)
	require.NoError(t, err)
	require.Len(t, data.Exams, 1)
	assert.JSONEq(t, string(key), string(data.Exams[0].AnswerKey))
	assert.JSONEq(t, string(scheme), string(data.Exams[0].MarkingScheme))

	require.NoError(t, s.SetExamDocuments(ctx, f.ExamID, nil, nil))
	data, err = s.ExportData(ctx)
	require.NoError(t, err)
	assert.Nil(t, data.Exams[0].AnswerKey)
}

func TestGetExam(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	e, err := s.GetExam(ctx, f.ExamID)
	require.NoError(t, err)
	assert.Equal(t, f.ExamID, e.ID)
	assert.Equal(t, "Midterm", e.Name)
	assert.Equal(t, "Physics", e.Subject)
	assert.Equal(t, 100, e.TotalMarks)
	assert.Empty(t, e.AnswerKey)
	assert.Empty(t, e.MarkingScheme)

	key := json.RawMessage(`{"1":"B"}`)
	require.NoError(t, s.SetExamDocuments(ctx, f.ExamID, key, nil))
	e, err = s.GetExam(ctx, f.ExamID)
	require.NoError(t, err)
	assert.JSONEq(t, string(key), string(e.AnswerKey))
	assert.Empty(t, e.MarkingScheme)

	_, err = s.GetExam(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetExam(ctx, 0)
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestFlagAnomaly(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	scriptA, err := s.AddAnswerScript(ctx, f.StudentA, f.ExamID, "/scripts/a.pdf")
	require.NoError(t, err)
	scriptB, err := s.AddAnswerScript(ctx, f.StudentB, f.ExamID, "/scripts/b.pdf")
	require.NoError(t, err)

	id, err := s.FlagAnomaly(ctx, model.AnomalyInput{
		ScriptID:        scriptA,
		QuestionNumber:  3,
		SimilarityScore: d("0.934"),
		SimilarScriptID: &scriptB,
		FlagReason:      "near-identical essay",
	})
	require.NoError(t, err)
	assert.Greater(t, id, 0)

	_, err = s.FlagAnomaly(ctx, model.AnomalyInput{ScriptID: scriptA, QuestionNumber: 1, SimilarityScore: d("1.01")})
	assert.ErrorIs(t, err, ErrMalformedInput)
	_, err = s.FlagAnomaly(ctx, model.AnomalyInput{ScriptID: 8080, QuestionNumber: 1, SimilarityScore: d("0.5")})
	assert.ErrorIs(t, err, ErrForeignKey)

	flags, err := s.ListAnomalyFlags(ctx, scriptA)
	require.NoError(t, err)
	require.Len(t, flags, 1)
	fl := flags[0]
	assert.Equal(t, id, fl.ID)
	assert.Equal(t, 3, fl.QuestionNumber)
	assert.True(t, fl.SimilarityScore.Equal(d("0.93")), "got %s", fl.SimilarityScore)
	require.NotNil(t, fl.SimilarScriptID)
	assert.Equal(t, scriptB, *fl.SimilarScriptID)
	assert.Equal(t, "near-identical essay", fl.FlagReason)
	assert.False(t, fl.Resolved)

	none, err := s.ListAnomalyFlags(ctx, scriptB)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestExportData(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	scriptID, err := s.AddAnswerScript(ctx, f.StudentA, f.ExamID, "/scripts/a.pdf")
	require.NoError(t, err)
	require.NoError(t, s.StoreEvaluationResults(ctx, scriptID, []model.Evaluation{
		{QuestionNumber: 1, QuestionType: "mcq", MarksObtained: d("1"), MaxMarks: d("1"), ConfidenceScore: d("1")},
	}))
	_, err = s.FlagAnomaly(ctx, model.AnomalyInput{ScriptID: scriptID, QuestionNumber: 1, SimilarityScore: d("0.7")})
	require.NoError(t, err)

	data, err := s.ExportData(ctx)
	require.NoError(t, err)
	assert.Equal(t, "000002_script_uniqueness_and_indexes", data.SchemaVersion)
	assert.False(t, data.ExportedAt.IsZero())
	assert.Len(t, data.Teachers, 1)
	assert.Len(t, data.Classes, 1)
	assert.Len(t, data.Students, 2)
	assert.Len(t, data.Exams, 1)
	assert.Len(t, data.AnswerScripts, 1)
	assert.Len(t, data.EvaluatedAnswers, 1)
	assert.Len(t, data.AnomalyFlags, 1)
	assert.Equal(t, 8, data.RowCount())
	assert.Equal(t, "ada@example.org", data.Teachers[0].Email)
}

func TestListOperations_RejectBadIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.ListEvaluatedAnswers(ctx, 0)
	assert.ErrorIs(t, err, ErrMalformedInput)
	_, err = s.ListAnomalyFlags(ctx, -1)
	assert.ErrorIs(t, err, ErrMalformedInput)
	_, err = s.GetExamResults(ctx, 0)
	assert.ErrorIs(t, err, ErrMalformedInput)
	_, err = s.GetTeacherByEmail(ctx, "")
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestOperationsAfterClose(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	_, err := s.AddTeacher(context.Background(), "Late", "late@example.org", "h")
	require.Error(t, err)
	var se *Error
	assert.True(t, errors.As(err, &se))
}

func intRef(v int) *int { return &v }
