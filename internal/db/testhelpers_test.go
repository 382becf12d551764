// Copyright (c) 2026 Markbook Team
// Markbook - exam evaluation tracking store
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"strings"
	"testing"
	"time"
)

// newTestStore opens a private in-memory sqlite store with the schema
// applied. The store is closed when the test ends.
func newTestStore(t *testing.T) *BunStore {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	st, err := NewStoreFromDSN("sqlite", dsn)
	if err != nil {
		t.Fatalf("NewStoreFromDSN failed: %v", err)
	}
	bs, ok := st.(*BunStore)
	if !ok {
		t.Fatalf("store is not *BunStore")
	}
	t.Cleanup(func() { _ = bs.Close() })
	if err := bs.InitializeSchema(context.Background()); err != nil {
		t.Fatalf("InitializeSchema failed: %v", err)
	}
	return bs
}

// fixture holds the ids created by seed.
type fixture struct {
	TeacherID int
	ClassID   int
	StudentA  int
	StudentB  int
	ExamID    int
}

// seed creates one teacher, one class with two students and one exam.
func seed(t *testing.T, s *BunStore) fixture {
	t.Helper()
	ctx := context.Background()
	var f fixture
	var err error
	if f.TeacherID, err = s.AddTeacher(ctx, "Ada Lovelace", "ada@example.org", "hash-1"); err != nil {
		t.Fatalf("AddTeacher: %v", err)
	}
	if f.ClassID, err = s.AddClass(ctx, "10-B", &f.TeacherID, "2025-2026"); err != nil {
		t.Fatalf("AddClass: %v", err)
	}
	if f.StudentA, err = s.AddStudent(ctx, "Alice", "R001", f.ClassID); err != nil {
		t.Fatalf("AddStudent A: %v", err)
	}
	if f.StudentB, err = s.AddStudent(ctx, "Bob", "R002", f.ClassID); err != nil {
		t.Fatalf("AddStudent B: %v", err)
	}
	examDate := time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)
	if f.ExamID, err = s.AddExam(ctx, "Midterm", f.ClassID, "Physics", examDate, 100); err != nil {
		t.Fatalf("AddExam: %v", err)
	}
	return f
}

// countRows returns the number of rows in table.
func countRows(t *testing.T, s *BunStore, table string) int {
	t.Helper()
	var n int
	if err := QueryRawInto(context.Background(), s.BunDB(), &n, "SELECT COUNT(*) FROM "+table); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
