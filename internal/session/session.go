// Package session runs one grid editing session over a single table. It owns
// the row edit tracker and drives the edit, diff, synthesize, validate and
// execute pipeline. A session is single-writer: callers must not mutate it
// from several goroutines at once.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gridedit/internal/apply"
	"gridedit/internal/core"
	"gridedit/internal/dialect"
	"gridedit/internal/diff"
	"gridedit/internal/introspect"
	"gridedit/internal/metacache"
	"gridedit/internal/pageload"
	"gridedit/internal/tracker"
	"gridedit/internal/validate"
)

const defaultPageSize = 100

// Config holds the per-session settings.
type Config struct {
	ConnectionID         string
	Schema               string
	Table                string
	BypassValidation     bool
	Transactional        bool
	AllowPrimaryKeyEdits bool
	DryRun               bool
	PageSize             int
}

// Option configures optional collaborators.
type Option func(*Session)

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCache shares a metadata cache between sessions.
func WithCache(c *metacache.Cache) Option {
	return func(s *Session) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithIntrospecter(i introspect.Introspecter) Option {
	return func(s *Session) {
		s.introspecter = i
	}
}

// WithOutput sets the writer for executor progress lines.
func WithOutput(w io.Writer) Option {
	return func(s *Session) {
		s.out = w
	}
}

// Session is one editing session.
type Session struct {
	id           string
	cfg          Config
	db           *sql.DB
	dialect      dialect.Dialect
	introspecter introspect.Introspecter
	cache        *metacache.Cache
	validator    *validate.Validator
	applier      *apply.Applier
	loader       *pageload.Loader
	tracker      *tracker.Tracker
	meta         *core.TableMeta
	drift        *diff.TableDiff
	page         int
	out          io.Writer
	logger       *zap.Logger
}

// New opens a session on cfg.Table and loads its metadata. Rows are not
// fetched until Reload is called.
func New(ctx context.Context, db *sql.DB, d dialect.Dialect, cfg Config, opts ...Option) (*Session, error) {
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, errors.New("table is required")
	}
	if cfg.Schema == "" {
		cfg.Schema = d.DefaultSchema()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.ConnectionID == "" {
		cfg.ConnectionID = string(d.Name())
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	s := &Session{
		id:      id.String(),
		cfg:     cfg,
		db:      db,
		dialect: d,
		out:     io.Discard,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = metacache.New()
	}
	if s.introspecter == nil {
		if s.introspecter, err = introspect.NewIntrospecter(d.Name()); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With(
		zap.String("session", s.id),
		zap.String("schema", cfg.Schema),
		zap.String("table", cfg.Table),
	)

	s.validator = validate.New(s, validate.WithLogger(s.logger))
	s.applier = apply.NewApplier(d, apply.Options{
		Transactional: cfg.Transactional,
		DryRun:        cfg.DryRun,
		Out:           s.out,
		Logger:        s.logger,
	})
	s.applier.Use(apply.FromDB(db))
	s.loader = pageload.New(db, d)

	if err := s.loadMeta(ctx); err != nil {
		return nil, err
	}
	s.logger.Debug("session opened", zap.Int("columns", len(s.meta.Columns)))
	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Config() Config {
	return s.cfg
}

// Meta returns the metadata the session edits against.
func (s *Session) Meta() *core.TableMeta {
	return s.meta
}

// Tracker exposes the row edit tracker for direct row operations.
func (s *Session) Tracker() *tracker.Tracker {
	return s.tracker
}

func (s *Session) Rows() []tracker.RowState {
	return s.tracker.Rows()
}

func (s *Session) Page() int {
	return s.page
}

func (s *Session) cacheKey(schema, table string) metacache.Key {
	return metacache.Key{ConnectionID: s.cfg.ConnectionID, Schema: schema, Table: table}
}

// TableMeta reads metadata through the cache. It makes the session the
// validator's metadata source.
func (s *Session) TableMeta(ctx context.Context, schema, table string) (*core.TableMeta, error) {
	return s.cache.Get(ctx, s.cacheKey(schema, table), func(ctx context.Context) (*core.TableMeta, error) {
		return s.introspecter.Introspect(ctx, s.db, schema, table)
	})
}

// loadMeta reads the table metadata and shapes the tracker around it. An
// existing tracker is kept so row ids stay unique for the whole session.
func (s *Session) loadMeta(ctx context.Context) error {
	_, cached := s.cache.Peek(s.cacheKey(s.cfg.Schema, s.cfg.Table))
	meta, err := s.TableMeta(ctx, s.cfg.Schema, s.cfg.Table)
	if err != nil {
		return err
	}
	s.logger.Debug("metadata loaded", zap.Bool("cached", cached), zap.Int("columns", len(meta.Columns)))

	s.meta = meta
	if s.tracker == nil {
		s.tracker = tracker.New(meta.ColumnNames(), meta.PrimaryKey,
			tracker.WithPrimaryKeyEdits(s.cfg.AllowPrimaryKeyEdits))
		return nil
	}
	s.tracker.SetColumns(meta.ColumnNames(), meta.PrimaryKey)
	return nil
}

// Reload fetches the given page and re-applies pending drafts to it.
func (s *Session) Reload(ctx context.Context, page int) ([]tracker.RowState, error) {
	return s.reload(ctx, page, s.tracker.Draft())
}

func (s *Session) reload(ctx context.Context, page int, prior *tracker.DraftSnapshot) ([]tracker.RowState, error) {
	page = max(page, 0)
	rows, err := s.loader.Load(ctx, s.meta, pageload.Page{Limit: s.cfg.PageSize, Offset: page * s.cfg.PageSize})
	if err != nil {
		return nil, err
	}
	s.page = page
	s.logger.Debug("page loaded", zap.Int("page", page), zap.Int("rows", len(rows)))
	return s.tracker.LoadPage(rows, s.meta.PrimaryKey, prior), nil
}

// RefreshMetadata drops the cached metadata, reads it again and rebuilds the
// tracker around the new columns. Pending edits are kept; edits on columns
// that no longer exist are dropped. What changed is available from Drift.
func (s *Session) RefreshMetadata(ctx context.Context) ([]tracker.RowState, error) {
	s.cache.Invalidate(s.cacheKey(s.cfg.Schema, s.cfg.Table))
	prior := s.tracker.Draft()
	old := s.meta
	if err := s.loadMeta(ctx); err != nil {
		return nil, err
	}

	s.drift = diff.Tables(old, s.meta)
	if !s.drift.IsEmpty() {
		s.logger.Info("table metadata changed",
			zap.String("drift", s.drift.String()),
			zap.Strings("removed_columns", s.drift.RemovedNames()),
		)
	}
	return s.reload(ctx, s.page, prior)
}

// Drift is the metadata difference found by the last RefreshMetadata, nil
// when nothing changed.
func (s *Session) Drift() *diff.TableDiff {
	return s.drift
}

// Close drops the session's cache entry. The database handle belongs to the caller.
func (s *Session) Close() {
	s.cache.Invalidate(s.cacheKey(s.cfg.Schema, s.cfg.Table))
	s.logger.Debug("session closed")
}
