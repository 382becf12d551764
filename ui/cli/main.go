// Copyright (c) 2026 Markbook Team
// Markbook - exam evaluation tracking store
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the root command, the shared flags and the per-invocation
// store lifecycle. Subcommands live in the neighbouring files.

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/toeirei/markbook/buildvars"
	"github.com/toeirei/markbook/internal/config"
	"github.com/toeirei/markbook/internal/db"
	"github.com/toeirei/markbook/internal/i18n"
	"github.com/toeirei/markbook/internal/logging"
)

var version = buildvars.VersionOrDefault("dev") // overridden by build info when present
var gitCommit = "dev"                           // set at build time with the short commit SHA
var buildDate = ""                              // set at build time (RFC3339)

// app carries the state of one CLI invocation. The store is opened in the
// root pre-run hook and closed when the command finishes.
type app struct {
	cfg         config.Config
	store       db.Store
	cfgFile     string
	envFile     string
	verbose     bool
	writeConfig bool
}

// setup loads configuration, initializes i18n and logging, then opens the
// store and brings its schema up to date.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "help" {
		return nil
	}
	if err := config.LoadDotEnv(a.envFile); err != nil {
		return err
	}

	configPath, err := getConfigPathFromCli(cmd)
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfig[config.Config](cmd, config.Defaults(), configPath)
	if err != nil {
		return errors.New(i18n.T("config.error_load", err))
	}
	a.cfg = cfg

	i18n.Init(cfg.Language)
	if err := logging.Init(cfg.Log.Level); err != nil {
		return err
	}
	if a.verbose {
		db.SetDebug(true)
		logging.SetDebug(true)
	}

	dsn, err := cfg.Database.DSN()
	if err != nil {
		return errors.New(i18n.T("config.error_init_db", err))
	}
	store, err := db.NewStoreFromDSN(cfg.Database.Type, dsn)
	if err != nil {
		return errors.New(i18n.T("config.error_init_db", err))
	}
	a.store = store
	if err := store.InitializeSchema(cmd.Context()); err != nil {
		return errors.New(i18n.T("config.error_init_db", err))
	}
	logging.Debugf("store ready (%s)", cfg.Database.Type)
	return nil
}

// close releases the store. It is safe to call more than once.
func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		logging.Warnf("closing store: %v", err)
	}
	a.store = nil
}

// Execute runs the CLI entrypoint. The main package should call this function
// and exit non-zero when it returns an error.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{}
	defer a.close()

	rootCmd := newRootCmd(a)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), i18n.T("error.prefix", err))
		return err
	}
	return nil
}

func getConfigPathFromCli(cmd *cobra.Command) (*string, error) {
	// Only proceed if the user has explicitly set the --config flag.
	if cmd.Flags().Changed("config") {
		path, err := cmd.Flags().GetString("config")
		if err != nil {
			return nil, fmt.Errorf("could not read --config flag: %w", err)
		}
		if path == "" {
			return nil, nil
		}
		// Make sure the user-provided file exists to avoid unwanted behavior.
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file specified via --config flag not found or is not accessible: %w", err)
		}
		return &path, nil
	}
	return nil, nil
}

// NewRootCmd creates a fresh root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{})
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "markbook",
		Short: "Markbook stores exam evaluation results.",
		Long: `Markbook is the persistence gateway of an answer-script evaluation
pipeline. It keeps teachers, classes, students, exams, answer scripts,
per-question evaluations and anomaly flags in one relational store.

Running without a subcommand initializes the database schema.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			a.close()
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("init.success"))
			return nil
		},
	}

	v, c, d := resolveBuildVersion(nil)
	compositeVersion := v
	if c != "" && c != "dev" {
		compositeVersion = compositeVersion + " (" + c + ")"
	}
	if d != "" {
		compositeVersion = compositeVersion + " built: " + d
	}
	cmd.Version = compositeVersion

	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose output (includes store debug logs)")
	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file")
	cmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "file with MARKBOOK_* variables to load")
	cmd.PersistentFlags().String("language", "en", `CLI language ("en", "de")`)
	cmd.PersistentFlags().String("database.type", "sqlite", "Database type (sqlite, postgres, mysql)")
	cmd.PersistentFlags().String("database.dsn", "", "Database connection string (DSN)")
	cmd.PersistentFlags().String("log.level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newInitCmd(a),
		newTeacherCmd(a),
		newClassCmd(a),
		newStudentCmd(a),
		newExamCmd(a),
		newScriptCmd(a),
		newEvaluationsCmd(a),
		newAnomalyCmd(a),
		newResultsCmd(a),
		newExportCmd(a),
	)
	return cmd
}

// newInitCmd creates the schema explicitly and can persist the effective
// configuration for later runs.
func newInitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, i18n.T("init.success"))
			if a.writeConfig {
				path, err := config.WriteConfigFile(&a.cfg, false)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, i18n.T("config.written", path))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&a.writeConfig, "write-config", false, "Write the effective configuration to the user config file")
	return cmd
}

// resolveBuildVersion prefers module build info over the linker-injected
// values. info is nil outside tests.
func resolveBuildVersion(info *debug.BuildInfo) (versionOut, commitOut, dateOut string) {
	resolvedVersion := version
	resolvedCommit := gitCommit
	resolvedDate := buildDate

	var ok bool
	if info == nil {
		if infoLocal, found := debug.ReadBuildInfo(); found {
			info = infoLocal
			ok = true
		}
	} else {
		ok = true
	}

	if ok && info != nil {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			resolvedVersion = info.Main.Version
		}
		if (resolvedVersion == "dev" || resolvedVersion == "(devel)") && info.Deps != nil {
			for _, dep := range info.Deps {
				if dep.Path == "github.com/toeirei/markbook" && dep.Version != "" {
					resolvedVersion = dep.Version
					break
				}
			}
		}

		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if s.Value != "" {
					resolvedCommit = s.Value
				}
			case "vcs.time":
				if s.Value != "" {
					resolvedDate = s.Value
				}
			}
		}
	}

	if resolvedVersion == "dev" && gitCommit != "dev" && gitCommit != "" {
		resolvedVersion = gitCommit
	}

	return resolvedVersion, resolvedCommit, resolvedDate
}
