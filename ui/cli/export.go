// Copyright (c) 2026 Markbook Team
// Markbook - exam evaluation tracking store
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/toeirei/markbook/internal/export"
	"github.com/toeirei/markbook/internal/i18n"
)

// newExportCmd writes a compressed snapshot of every table.
func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export [output-file]",
		Short: "Export all stored data to a compressed JSON file",
		Long: `Reads every table inside one transaction and writes the snapshot as
zstd-compressed JSON. Without an argument the file is named after today's
date. The .zst extension is appended when missing.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := export.DefaultFilename(time.Now())
			if len(args) > 0 {
				filename = export.NormalizeFilename(args[0])
			}

			data, err := a.store.ExportData(cmd.Context())
			if err != nil {
				return err
			}
			if err := export.WriteFile(filename, data); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("export.done", data.RowCount(), filename))
			return nil
		},
	}
}
