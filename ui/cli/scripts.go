// Copyright (c) 2026 Markbook Team
// Markbook - exam evaluation tracking store
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/toeirei/markbook/internal/db"
	"github.com/toeirei/markbook/internal/i18n"
	"github.com/toeirei/markbook/internal/logging"
	"github.com/toeirei/markbook/internal/model"
)

const pdfMIME = "application/pdf"

func newScriptCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "script",
		Short: "Manage answer scripts",
	}

	var studentID, examID int
	var file string
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Register an uploaded answer script",
		Long: `Registers a student's answer document for an exam. When the file can be
read it must be a PDF. Paths that are not reachable from this machine are
stored as given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkPDF(file); err != nil {
				return err
			}
			id, err := a.store.AddAnswerScript(cmd.Context(), studentID, examID, file)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("script.added", id, studentID))
			return nil
		},
	}
	addCmd.Flags().IntVar(&studentID, "student", 0, "Student id")
	addCmd.Flags().IntVar(&examID, "exam", 0, "Exam id")
	addCmd.Flags().StringVar(&file, "file", "", "Path of the answer document")
	for _, f := range []string{"student", "exam", "file"} {
		_ = addCmd.MarkFlagRequired(f)
	}

	var scriptID int
	var marks string
	totalCmd := &cobra.Command{
		Use:   "total",
		Short: "Record the aggregate marks of an evaluated script",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			total, err := decimal.NewFromString(marks)
			if err != nil {
				return fmt.Errorf("invalid --marks %q: %w", marks, err)
			}
			if err := a.store.RecordScriptTotal(cmd.Context(), scriptID, total); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("script.total_recorded", total.Round(2).StringFixed(2), scriptID))
			return nil
		},
	}
	totalCmd.Flags().IntVar(&scriptID, "script", 0, "Script id")
	totalCmd.Flags().StringVar(&marks, "marks", "", "Total obtained marks")
	_ = totalCmd.MarkFlagRequired("script")
	_ = totalCmd.MarkFlagRequired("marks")

	cmd.AddCommand(addCmd, totalCmd)
	return cmd
}

// checkPDF rejects readable files that are not PDFs. Unreadable paths only
// produce a warning.
func checkPDF(path string) error {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		logging.Warnf("%s", i18n.T("script.unreadable", path, err))
		return nil
	}
	if !mt.Is(pdfMIME) {
		return errors.New(i18n.T("script.not_pdf", path, mt.String()))
	}
	return nil
}

func newEvaluationsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluations",
		Short: "Store and inspect per-question evaluations",
	}

	var importScript int
	importCmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Store a batch of evaluations for a script",
		Long: `Reads a YAML or JSON list of per-question evaluations and stores them for
the script in a single transaction. Either every entry is stored or none is.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			evaluations, err := readEvaluations(args[0])
			if err != nil {
				return err
			}
			if err := a.store.StoreEvaluationResults(cmd.Context(), importScript, evaluations); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("evaluations.imported", len(evaluations), importScript))
			return nil
		},
	}
	importCmd.Flags().IntVar(&importScript, "script", 0, "Script id")
	_ = importCmd.MarkFlagRequired("script")

	var listScript int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the evaluations of a script",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			answers, err := a.store.ListEvaluatedAnswers(cmd.Context(), listScript)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(answers) == 0 {
				fmt.Fprintln(out, i18n.T("evaluations.none", listScript))
				return nil
			}
			rows := make([][]string, 0, len(answers))
			for _, ev := range answers {
				rows = append(rows, []string{
					strconv.Itoa(ev.QuestionNumber),
					ev.QuestionType,
					ev.MarksObtained.StringFixed(2) + " / " + ev.MaxMarks.StringFixed(2),
					ev.ConfidenceScore.StringFixed(2),
					yesNo(ev.NeedsReview),
					ev.Feedback,
				})
			}
			renderTable(out, []string{
				i18n.T("evaluations.header_question"),
				i18n.T("evaluations.header_type"),
				i18n.T("evaluations.header_marks"),
				i18n.T("evaluations.header_confidence"),
				i18n.T("evaluations.header_review"),
				i18n.T("evaluations.header_feedback"),
			}, rows)
			return nil
		},
	}
	listCmd.Flags().IntVar(&listScript, "script", 0, "Script id")
	_ = listCmd.MarkFlagRequired("script")

	cmd.AddCommand(importCmd, listCmd)
	return cmd
}

// readEvaluations decodes a YAML or JSON list of evaluations. Unknown keys
// and entries missing a required field fail the whole file.
func readEvaluations(path string) ([]model.Evaluation, error) {
	const op = "readEvaluations"
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	var evaluations []model.Evaluation
	if doc == nil {
		return evaluations, nil
	}

	var records []model.EvaluationRecord
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&records); err != nil {
		return nil, &db.Error{Op: op, Kind: db.ErrMalformedInput, Err: fmt.Errorf("decode %s: %w", path, err)}
	}
	for i, r := range records {
		if err := model.ValidateStruct(r); err != nil {
			return nil, &db.Error{Op: op, Kind: db.ErrMalformedInput, Err: fmt.Errorf("%s entry %d: %w", path, i+1, err)}
		}
		evaluations = append(evaluations, r.Evaluation())
	}
	return evaluations, nil
}

func newAnomalyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "anomaly",
		Short: "Record and inspect anomaly flags",
	}

	var in model.AnomalyInput
	var similarity string
	var similarScript int
	flagCmd := &cobra.Command{
		Use:   "flag",
		Short: "Flag a suspicious similarity between two scripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := decimal.NewFromString(similarity)
			if err != nil {
				return fmt.Errorf("invalid --similarity %q: %w", similarity, err)
			}
			in.SimilarityScore = score
			if cmd.Flags().Changed("similar-script") {
				in.SimilarScriptID = &similarScript
			}
			id, err := a.store.FlagAnomaly(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("anomaly.flagged", in.ScriptID, id))
			return nil
		},
	}
	flagCmd.Flags().IntVar(&in.ScriptID, "script", 0, "Script id")
	flagCmd.Flags().IntVar(&in.QuestionNumber, "question", 0, "Question number")
	flagCmd.Flags().StringVar(&similarity, "similarity", "", "Similarity score between 0 and 1")
	flagCmd.Flags().IntVar(&similarScript, "similar-script", 0, "Id of the similar script (optional)")
	flagCmd.Flags().StringVar(&in.FlagReason, "reason", "", "Reason for the flag")
	for _, f := range []string{"script", "question", "similarity"} {
		_ = flagCmd.MarkFlagRequired(f)
	}

	var listScript int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the anomaly flags of a script",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags, err := a.store.ListAnomalyFlags(cmd.Context(), listScript)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(flags) == 0 {
				fmt.Fprintln(out, i18n.T("anomaly.none", listScript))
				return nil
			}
			rows := make([][]string, 0, len(flags))
			for _, f := range flags {
				similar := "-"
				if f.SimilarScriptID != nil {
					similar = strconv.Itoa(*f.SimilarScriptID)
				}
				rows = append(rows, []string{
					strconv.Itoa(f.QuestionNumber),
					f.SimilarityScore.StringFixed(2),
					similar,
					f.FlagReason,
					yesNo(f.Resolved),
				})
			}
			renderTable(out, []string{
				i18n.T("anomaly.header_question"),
				i18n.T("anomaly.header_similarity"),
				i18n.T("anomaly.header_similar_script"),
				i18n.T("anomaly.header_reason"),
				i18n.T("anomaly.header_resolved"),
			}, rows)
			return nil
		},
	}
	listCmd.Flags().IntVar(&listScript, "script", 0, "Script id")
	_ = listCmd.MarkFlagRequired("script")

	cmd.AddCommand(flagCmd, listCmd)
	return cmd
}
