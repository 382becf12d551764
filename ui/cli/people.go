// Copyright (c) 2026 Markbook Team
// Markbook - exam evaluation tracking store
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/toeirei/markbook/internal/i18n"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

func newTeacherCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "teacher",
		Short: "Manage teachers",
	}

	var name, email string
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a teacher",
		Long: `Adds a teacher account. The password is read from the terminal without
echo, or as a single line from standard input when it is not a terminal.
Only a bcrypt hash of the password is stored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd)
			if err != nil {
				return err
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			id, err := a.store.AddTeacher(cmd.Context(), name, email, string(hash))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("teacher.added", name, id))
			return nil
		},
	}
	addCmd.Flags().StringVar(&name, "name", "", "Teacher name")
	addCmd.Flags().StringVar(&email, "email", "", "Teacher email (unique)")
	_ = addCmd.MarkFlagRequired("name")
	_ = addCmd.MarkFlagRequired("email")

	var lookup string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show a teacher by email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.store.GetTeacherByEmail(cmd.Context(), lookup)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("teacher.show", t.Name, t.Email, t.ID, t.CreatedAt.Format("2006-01-02 15:04")))
			return nil
		},
	}
	showCmd.Flags().StringVar(&lookup, "email", "", "Teacher email")
	_ = showCmd.MarkFlagRequired("email")

	cmd.AddCommand(addCmd, showCmd)
	return cmd
}

// readPassword prompts twice on a terminal and reads one line otherwise.
func readPassword(cmd *cobra.Command) (string, error) {
	var password string
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		out := cmd.OutOrStdout()
		fmt.Fprint(out, i18n.T("teacher.password_prompt"))
		first, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		fmt.Fprint(out, i18n.T("teacher.password_confirm"))
		second, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		if !bytes.Equal(first, second) {
			return "", errors.New(i18n.T("teacher.password_mismatch"))
		}
		password = string(first)
	} else {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return "", errors.New(i18n.T("teacher.password_empty"))
	}
	return password, nil
}

func newClassCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "class",
		Short: "Manage classes",
	}

	var name, year string
	var teacherID int
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a class",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var owner *int
			if cmd.Flags().Changed("teacher") {
				owner = &teacherID
			}
			id, err := a.store.AddClass(cmd.Context(), name, owner, year)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("class.added", name, id))
			return nil
		},
	}
	addCmd.Flags().StringVar(&name, "name", "", "Class name")
	addCmd.Flags().IntVar(&teacherID, "teacher", 0, "Owning teacher id (optional)")
	addCmd.Flags().StringVar(&year, "year", "", "Academic year, e.g. 2026-27")
	_ = addCmd.MarkFlagRequired("name")
	_ = addCmd.MarkFlagRequired("year")

	cmd.AddCommand(addCmd)
	return cmd
}

func newStudentCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "student",
		Short: "Manage students",
	}

	var name, roll string
	var classID int
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a student to a class",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.store.AddStudent(cmd.Context(), name, roll, classID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("student.added", name, id))
			return nil
		},
	}
	addCmd.Flags().StringVar(&name, "name", "", "Student name")
	addCmd.Flags().StringVar(&roll, "roll", "", "Roll number (unique)")
	addCmd.Flags().IntVar(&classID, "class", 0, "Class id")
	_ = addCmd.MarkFlagRequired("name")
	_ = addCmd.MarkFlagRequired("roll")
	_ = addCmd.MarkFlagRequired("class")

	cmd.AddCommand(addCmd)
	return cmd
}
