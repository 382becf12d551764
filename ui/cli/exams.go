// Copyright (c) 2026 Markbook Team
// Markbook - exam evaluation tracking store
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/toeirei/markbook/internal/i18n"
)

func newExamCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exam",
		Short: "Manage exams",
	}

	var name, subject, date string
	var classID, total int
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add an exam for a class",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			examDate, err := time.Parse("2006-01-02", date)
			if err != nil {
				return fmt.Errorf("invalid --date %q (want YYYY-MM-DD): %w", date, err)
			}
			id, err := a.store.AddExam(cmd.Context(), name, classID, subject, examDate, total)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("exam.added", name, id))
			return nil
		},
	}
	addCmd.Flags().StringVar(&name, "name", "", "Exam name")
	addCmd.Flags().IntVar(&classID, "class", 0, "Class id")
	addCmd.Flags().StringVar(&subject, "subject", "", "Subject")
	addCmd.Flags().StringVar(&date, "date", "", "Exam date (YYYY-MM-DD)")
	addCmd.Flags().IntVar(&total, "total", 0, "Total marks")
	for _, f := range []string{"name", "class", "subject", "date", "total"} {
		_ = addCmd.MarkFlagRequired(f)
	}

	var examID int
	var keyFile, schemeFile string
	docsCmd := &cobra.Command{
		Use:   "documents",
		Short: "Attach an answer key and marking scheme to an exam",
		Long: `Reads the answer key and marking scheme from YAML or JSON files and stores
them on the exam as JSON documents. A document that is not given is cleared.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := readDocument(keyFile)
			if err != nil {
				return err
			}
			scheme, err := readDocument(schemeFile)
			if err != nil {
				return err
			}
			if err := a.store.SetExamDocuments(cmd.Context(), examID, key, scheme); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("exam.documents_set", examID))
			return nil
		},
	}
	docsCmd.Flags().IntVar(&examID, "exam", 0, "Exam id")
	docsCmd.Flags().StringVar(&keyFile, "answer-key", "", "Answer key file (YAML or JSON)")
	docsCmd.Flags().StringVar(&schemeFile, "marking-scheme", "", "Marking scheme file (YAML or JSON)")
	_ = docsCmd.MarkFlagRequired("exam")

	var showExam int
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show an exam with its answer key and marking scheme",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.store.GetExam(cmd.Context(), showExam)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, i18n.T("exam.show_header", e.Name, e.Subject, e.ID))
			fmt.Fprintln(out, i18n.T("exam.show_date", e.ExamDate.Format("2006-01-02")))
			fmt.Fprintln(out, i18n.T("exam.show_total", e.TotalMarks))
			fmt.Fprintln(out, i18n.T("exam.show_answer_key"))
			printDocument(out, e.AnswerKey)
			fmt.Fprintln(out, i18n.T("exam.show_marking_scheme"))
			printDocument(out, e.MarkingScheme)
			return nil
		},
	}
	showCmd.Flags().IntVar(&showExam, "exam", 0, "Exam id")
	_ = showCmd.MarkFlagRequired("exam")

	cmd.AddCommand(addCmd, docsCmd, showCmd)
	return cmd
}

// printDocument writes an indented JSON document, or a placeholder when the
// exam has none.
func printDocument(w io.Writer, doc json.RawMessage) {
	if len(doc) == 0 {
		fmt.Fprintln(w, i18n.T("exam.show_no_document"))
		return
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, doc, "  ", "  "); err != nil {
		fmt.Fprintf(w, "  %s\n", doc)
		return
	}
	fmt.Fprintf(w, "  %s\n", buf.String())
}

func newResultsCmd(a *app) *cobra.Command {
	var examID int
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Show per-student totals for an exam",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := a.store.GetExamResults(cmd.Context(), examID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, i18n.T("results.none", examID))
				return nil
			}
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{r.StudentName, r.RollNumber, r.MarksString()})
			}
			renderTable(out, []string{
				i18n.T("results.header_student"),
				i18n.T("results.header_roll"),
				i18n.T("results.header_marks"),
			}, rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&examID, "exam", 0, "Exam id")
	_ = cmd.MarkFlagRequired("exam")
	return cmd
}
