// Copyright (c) 2026 Markbook Team
// Markbook - exam evaluation tracking store
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/toeirei/markbook/internal/model"
	"github.com/uptrace/bun"
)

// The *Bun helpers below run one statement (or a short statement group)
// against either a *bun.DB or a bun.Tx. Input checks happen in the BunStore
// methods before any of these is reached.

// AddTeacherBun inserts a teacher and returns the generated id.
func AddTeacherBun(ctx context.Context, idb bun.IDB, name, email, passwordHash string) (int, error) {
	tm := &TeacherModel{Name: name, Email: email, PasswordHash: passwordHash}
	if _, err := idb.NewInsert().Model(tm).Column("name", "email", "password_hash").Returning("teacher_id").Exec(ctx); err != nil {
		return 0, MapDBError(err)
	}
	return tm.ID, nil
}

// GetTeacherByEmailBun loads a teacher by email. sql.ErrNoRows is passed
// through so the caller can report ErrNotFound.
func GetTeacherByEmailBun(ctx context.Context, idb bun.IDB, email string) (*model.Teacher, error) {
	var tm TeacherModel
	if err := idb.NewSelect().Model(&tm).Where("email = ?", email).Limit(1).Scan(ctx); err != nil {
		return nil, MapDBError(err)
	}
	t := teacherModelToModel(tm)
	return &t, nil
}

// AddClassBun inserts a class. A nil teacherID stores NULL.
func AddClassBun(ctx context.Context, idb bun.IDB, className string, teacherID *int, academicYear string) (int, error) {
	cm := &ClassModel{Name: className, TeacherID: nullInt(teacherID), AcademicYear: academicYear}
	if _, err := idb.NewInsert().Model(cm).Column("class_name", "teacher_id", "academic_year").Returning("class_id").Exec(ctx); err != nil {
		return 0, MapDBError(err)
	}
	return cm.ID, nil
}

// AddStudentBun inserts a student into a class.
func AddStudentBun(ctx context.Context, idb bun.IDB, name, rollNumber string, classID int) (int, error) {
	sm := &StudentModel{Name: name, RollNumber: rollNumber, ClassID: nullInt(&classID)}
	if _, err := idb.NewInsert().Model(sm).Column("name", "roll_number", "class_id").Returning("student_id").Exec(ctx); err != nil {
		return 0, MapDBError(err)
	}
	return sm.ID, nil
}

// AddExamBun inserts an active exam without answer key or marking scheme.
func AddExamBun(ctx context.Context, idb bun.IDB, examName string, classID int, subject string, examDate time.Time, totalMarks int) (int, error) {
	em := &ExamModel{
		Name:       examName,
		ClassID:    nullInt(&classID),
		Subject:    subject,
		ExamDate:   examDate,
		TotalMarks: totalMarks,
		IsActive:   sql.NullBool{Bool: true, Valid: true},
	}
	if _, err := idb.NewInsert().Model(em).Column("exam_name", "class_id", "subject", "exam_date", "total_marks", "is_active").Returning("exam_id").Exec(ctx); err != nil {
		return 0, MapDBError(err)
	}
	return em.ID, nil
}

// SetExamDocumentsBun replaces the JSON documents of an exam. Empty
// documents are stored as NULL.
func SetExamDocumentsBun(ctx context.Context, idb bun.IDB, examID int, answerKey, markingScheme json.RawMessage) (int64, error) {
	res, err := idb.NewUpdate().Model((*ExamModel)(nil)).
		Set("answer_key_json = ?", nullJSON(answerKey)).
		Set("marking_scheme_json = ?", nullJSON(markingScheme)).
		Where("exam_id = ?", examID).
		Exec(ctx)
	if err != nil {
		return 0, MapDBError(err)
	}
	return res.RowsAffected()
}

// GetExamBun loads one exam by id.
func GetExamBun(ctx context.Context, idb bun.IDB, examID int) (*model.Exam, error) {
	var em ExamModel
	if err := idb.NewSelect().Model(&em).Where("exam_id = ?", examID).Limit(1).Scan(ctx); err != nil {
		return nil, MapDBError(err)
	}
	e := examModelToModel(em)
	return &e, nil
}

// GetExamResultsBun joins students with their answer scripts for one exam.
// Scripts without a matching student are left out.
func GetExamResultsBun(ctx context.Context, idb bun.IDB, examID int) ([]model.ExamResult, error) {
	var rows []examResultRow
	err := QueryRawInto(ctx, idb, &rows, `SELECT s.name AS student_name, s.roll_number AS roll_number, a.total_obtained_marks AS total_obtained_marks
		FROM students s
		JOIN answer_scripts a ON s.student_id = a.student_id
		WHERE a.exam_id = ?
		ORDER BY s.roll_number, a.script_id`, examID)
	if err != nil {
		return nil, MapDBError(err)
	}
	out := make([]model.ExamResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.ExamResult{
			StudentName:        r.StudentName,
			RollNumber:         r.RollNumber,
			TotalObtainedMarks: r.TotalObtainedMarks,
		})
	}
	return out, nil
}

// AddAnswerScriptBun registers an uploaded answer script.
func AddAnswerScriptBun(ctx context.Context, idb bun.IDB, studentID, examID int, pdfPath string) (int, error) {
	am := &AnswerScriptModel{
		StudentID: nullInt(&studentID),
		ExamID:    nullInt(&examID),
		PDFPath:   pdfPath,
		Status:    sql.NullString{String: model.ScriptStatusUploaded, Valid: true},
	}
	if _, err := idb.NewInsert().Model(am).Column("student_id", "exam_id", "pdf_path", "status").Returning("script_id").Exec(ctx); err != nil {
		return 0, MapDBError(err)
	}
	return am.ID, nil
}

// scriptExistsBun reports whether an answer script with id exists.
func scriptExistsBun(ctx context.Context, idb bun.IDB, scriptID int) (bool, error) {
	n, err := idb.NewSelect().Model((*AnswerScriptModel)(nil)).Where("script_id = ?", scriptID).Count(ctx)
	if err != nil {
		return false, MapDBError(err)
	}
	return n > 0, nil
}

// RecordScriptTotalBun stores the aggregate marks and marks the script
// evaluated at evaluatedAt.
func RecordScriptTotalBun(ctx context.Context, idb bun.IDB, scriptID int, total decimal.Decimal, evaluatedAt time.Time) error {
	_, err := idb.NewUpdate().Model((*AnswerScriptModel)(nil)).
		Set("total_obtained_marks = ?", decimal.NewNullDecimal(total.Round(2))).
		Set("evaluated_at = ?", evaluatedAt).
		Set("status = ?", model.ScriptStatusEvaluated).
		Where("script_id = ?", scriptID).
		Exec(ctx)
	return MapDBError(err)
}

// InsertEvaluationsBun inserts one evaluated_answers row per evaluation.
// Callers wanting all-or-nothing behaviour pass a bun.Tx.
func InsertEvaluationsBun(ctx context.Context, idb bun.IDB, scriptID int, evaluations []model.Evaluation) error {
	for _, ev := range evaluations {
		em := evaluationToModel(scriptID, ev)
		_, err := idb.NewInsert().Model(em).
			Column("script_id", "question_number", "question_type", "extracted_text", "marks_obtained",
				"max_marks", "confidence_score", "needs_review", "feedback").
			Returning("eval_id").
			Exec(ctx)
		if err != nil {
			return MapDBError(err)
		}
	}
	return nil
}

// ListEvaluatedAnswersBun returns the evaluations of a script ordered by
// question number.
func ListEvaluatedAnswersBun(ctx context.Context, idb bun.IDB, scriptID int) ([]model.EvaluatedAnswer, error) {
	var rows []EvaluatedAnswerModel
	if err := idb.NewSelect().Model(&rows).Where("script_id = ?", scriptID).Order("question_number", "eval_id").Scan(ctx); err != nil {
		return nil, MapDBError(err)
	}
	out := make([]model.EvaluatedAnswer, 0, len(rows))
	for _, r := range rows {
		out = append(out, evaluatedAnswerModelToModel(r))
	}
	return out, nil
}

// AddAnomalyFlagBun records an anomaly flag. Flags start unresolved.
func AddAnomalyFlagBun(ctx context.Context, idb bun.IDB, in model.AnomalyInput) (int, error) {
	am := &AnomalyFlagModel{
		ScriptID:        sql.NullInt64{Int64: int64(in.ScriptID), Valid: true},
		QuestionNumber:  in.QuestionNumber,
		SimilarityScore: decimal.NewNullDecimal(in.SimilarityScore.Round(2)),
		SimilarScriptID: nullInt(in.SimilarScriptID),
		FlagReason:      nullString(in.FlagReason),
		Resolved:        sql.NullBool{Bool: false, Valid: true},
	}
	_, err := idb.NewInsert().Model(am).
		Column("script_id", "question_number", "similarity_score", "similar_script_id", "flag_reason", "resolved").
		Returning("flag_id").
		Exec(ctx)
	if err != nil {
		return 0, MapDBError(err)
	}
	return am.ID, nil
}

// ListAnomalyFlagsBun returns the flags raised against a script.
func ListAnomalyFlagsBun(ctx context.Context, idb bun.IDB, scriptID int) ([]model.AnomalyFlag, error) {
	var rows []AnomalyFlagModel
	if err := idb.NewSelect().Model(&rows).Where("script_id = ?", scriptID).Order("flag_id").Scan(ctx); err != nil {
		return nil, MapDBError(err)
	}
	out := make([]model.AnomalyFlag, 0, len(rows))
	for _, r := range rows {
		out = append(out, anomalyFlagModelToModel(r))
	}
	return out, nil
}

// ExportDataBun reads every table. Run it inside a transaction for a
// consistent snapshot.
func ExportDataBun(ctx context.Context, idb bun.IDB) (*model.BackupData, error) {
	var (
		teachers []TeacherModel
		classes  []ClassModel
		students []StudentModel
		exams    []ExamModel
		scripts  []AnswerScriptModel
		answers  []EvaluatedAnswerModel
		flags    []AnomalyFlagModel
	)
	for _, q := range []struct {
		dest  any
		order string
	}{
		{&teachers, "teacher_id"},
		{&classes, "class_id"},
		{&students, "student_id"},
		{&exams, "exam_id"},
		{&scripts, "script_id"},
		{&answers, "eval_id"},
		{&flags, "flag_id"},
	} {
		if err := idb.NewSelect().Model(q.dest).Order(q.order).Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, MapDBError(err)
		}
	}

	version, err := latestMigration(ctx, idb)
	if err != nil {
		return nil, MapDBError(err)
	}

	data := &model.BackupData{
		SchemaVersion:    version,
		ExportedAt:       time.Now().UTC(),
		Teachers:         make([]model.Teacher, 0, len(teachers)),
		Classes:          make([]model.Class, 0, len(classes)),
		Students:         make([]model.Student, 0, len(students)),
		Exams:            make([]model.Exam, 0, len(exams)),
		AnswerScripts:    make([]model.AnswerScript, 0, len(scripts)),
		EvaluatedAnswers: make([]model.EvaluatedAnswer, 0, len(answers)),
		AnomalyFlags:     make([]model.AnomalyFlag, 0, len(flags)),
	}
	for _, t := range teachers {
		data.Teachers = append(data.Teachers, teacherModelToModel(t))
	}
	for _, c := range classes {
		data.Classes = append(data.Classes, classModelToModel(c))
	}
	for _, s := range students {
		data.Students = append(data.Students, studentModelToModel(s))
	}
	for _, e := range exams {
		data.Exams = append(data.Exams, examModelToModel(e))
	}
	for _, s := range scripts {
		data.AnswerScripts = append(data.AnswerScripts, answerScriptModelToModel(s))
	}
	for _, a := range answers {
		data.EvaluatedAnswers = append(data.EvaluatedAnswers, evaluatedAnswerModelToModel(a))
	}
	for _, f := range flags {
		data.AnomalyFlags = append(data.AnomalyFlags, anomalyFlagModelToModel(f))
	}
	return data, nil
}
