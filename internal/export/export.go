// Copyright (c) 2026 Markbook Team
// Markbook - exam evaluation tracking store
// This source code is licensed under the MIT license found in the LICENSE file.

// Package export writes and reads store snapshots as zstd-compressed JSON.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/toeirei/markbook/internal/model"
)

// Extension is appended to export file names that lack it.
const Extension = ".zst"

// DefaultFilename returns the file name used when none is given.
func DefaultFilename(now time.Time) string {
	return fmt.Sprintf("markbook-export-%s.json%s", now.Format("2006-01-02"), Extension)
}

// NormalizeFilename appends Extension unless name already ends with it.
func NormalizeFilename(name string) string {
	if strings.HasSuffix(name, Extension) {
		return name
	}
	return name + Extension
}

// Write streams data as indented JSON through a zstd encoder into w.
func Write(w io.Writer, data *model.BackupData) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("could not create zstd writer: %w", err)
	}

	encoder := json.NewEncoder(zw)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		_ = zw.Close()
		return fmt.Errorf("could not encode json to zstd writer: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("could not flush zstd writer: %w", err)
	}
	return nil
}

// Read decodes a snapshot written by Write.
func Read(r io.Reader) (*model.BackupData, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("could not create zstd reader: %w", err)
	}
	defer zr.Close()

	var data model.BackupData
	if err := json.NewDecoder(zr).Decode(&data); err != nil {
		return nil, fmt.Errorf("could not decode json from zstd reader: %w", err)
	}
	return &data, nil
}

// WriteFile creates filename and writes data into it.
func WriteFile(filename string, data *model.BackupData) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return Write(file, data)
}

// ReadFile opens filename and decodes the snapshot in it.
func ReadFile(filename string) (*model.BackupData, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer func() { _ = file.Close() }()
	return Read(file)
}
