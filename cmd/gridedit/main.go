// Package main contains the cli implementation of the tool. It uses cobra
// package for cli tool implementation.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gridedit/internal/config"
	"gridedit/internal/dialect"
	_ "gridedit/internal/dialect/mysql"
	_ "gridedit/internal/dialect/postgresql"
	_ "gridedit/internal/dialect/sqlite"
	_ "gridedit/internal/introspect/mysql"
	_ "gridedit/internal/introspect/postgresql"
	_ "gridedit/internal/introspect/sqlite"
	"gridedit/internal/metacache"
	"gridedit/internal/output"
	"gridedit/internal/session"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "gridedit",
		Short:        "Edit table rows through validated, previewable SQL batches",
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Config file (default gridedit.yaml or gridedit.toml in . or $HOME/.config/gridedit)")
	pf.String(config.FlagNames[config.KeyDialect], "postgresql", "Database dialect: postgresql, mysql or sqlite")
	pf.String(config.FlagNames[config.KeyDSN], "", "Database connection string")
	pf.String(config.FlagNames[config.KeyConnectionID], "", "Name of the connection used to key cached metadata")
	pf.String(config.FlagNames[config.KeyLogLevel], "info", "Log level: debug, info, warn or error")
	pf.Int(config.FlagNames[config.KeyTimeout], 300, "Timeout in seconds")
	pf.Int(config.FlagNames[config.KeyPageSize], 100, "Rows per page")
	pf.Bool(config.FlagNames[config.KeyAllowPrimaryKeyEdits], true, "Allow editing primary key values of existing rows")
	pf.StringP(config.FlagNames[config.KeyFormat], "f", "sql", "Output format: sql, json or summary")
	pf.StringP("output", "o", "", "Write the formatted output to this file")

	rootCmd.AddCommand(columnsCmd())
	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(applyCmd())
	return rootCmd
}

// runtime is everything one command needs: settings, logger, formatter, an
// open connection and the metadata cache its sessions share.
type runtime struct {
	cfg       *config.Config
	logger    *zap.Logger
	formatter output.Formatter
	dialect   dialect.Dialect
	db        *sql.DB
	cache     *metacache.Cache
	out       io.Writer
	outFile   string
}

func setup(ctx context.Context, cmd *cobra.Command) (*runtime, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("--dsn is required (or set dsn in the config file or GRIDEDIT_DSN)")
	}

	logger, err := newLogger(cfg.Level())
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	formatter, err := output.NewFormatter(cfg.Format)
	if err != nil {
		return nil, err
	}
	d, err := dialect.GetDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	db, err := dialect.Open(ctx, d, cfg.DSN)
	if err != nil {
		return nil, err
	}
	outFile, _ := cmd.Flags().GetString("output")

	logger.Debug("connected", zap.String("dialect", cfg.Dialect), zap.String("connection", cfg.ConnectionID))
	return &runtime{
		cfg:       cfg,
		logger:    logger,
		formatter: formatter,
		dialect:   d,
		db:        db,
		cache:     metacache.New(),
		out:       cmd.OutOrStdout(),
		outFile:   outFile,
	}, nil
}

func (rt *runtime) close() {
	rt.cache.ClearConnection(rt.cfg.ConnectionID)
	if err := rt.db.Close(); err != nil {
		rt.logger.Warn("failed to close database connection", zap.Error(err))
	}
	_ = rt.logger.Sync()
}

// openSession starts a session on schema.table and loads the requested page.
func (rt *runtime) openSession(ctx context.Context, schema, table string, page int) (*session.Session, error) {
	s, err := session.New(ctx, rt.db, rt.dialect, sessionConfig(rt.cfg, schema, table),
		session.WithLogger(rt.logger), session.WithOutput(rt.progress()), session.WithCache(rt.cache))
	if err != nil {
		return nil, err
	}
	if _, err := s.Reload(ctx, page); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func sessionConfig(cfg *config.Config, schema, table string) session.Config {
	return session.Config{
		ConnectionID:         cfg.ConnectionID,
		Schema:               schema,
		Table:                table,
		BypassValidation:     cfg.BypassValidation,
		Transactional:        cfg.Transactional,
		AllowPrimaryKeyEdits: cfg.AllowPrimaryKeyEdits,
		DryRun:               cfg.DryRun,
		PageSize:             cfg.PageSize,
	}
}

// progress is where the executor reports statement progress. JSON output is
// kept machine readable by sending progress to stderr.
func (rt *runtime) progress() io.Writer {
	if rt.cfg.Format == string(output.FormatJSON) || rt.outFile != "" {
		return os.Stderr
	}
	return rt.out
}

// write prints formatted output or saves it to --output.
func (rt *runtime) write(content string) error {
	if rt.outFile == "" {
		_, err := io.WriteString(rt.out, content)
		return err
	}
	if err := os.WriteFile(rt.outFile, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	_, _ = fmt.Fprintf(os.Stderr, "Output saved to %s\n", rt.outFile)
	return nil
}

func newLogger(level zapcore.Level) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	return cfg.Build()
}
