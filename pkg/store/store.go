// Package store persists the inscription catalog, the display selection and
// a compressed response cache in a single SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/rubiojr/ordframe/pkg/log"
	"github.com/rubiojr/ordframe/pkg/ordinals"
)

var logger = log.ForService("store")

// ErrNotFound is returned by cache lookups that miss or hit an expired entry.
var ErrNotFound = errors.New("not found")

type Store struct {
	db              *sql.DB
	defaultInterval int
	now             func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithDefaultSlideshowInterval sets the interval reported for a selection
// that never stored one.
func WithDefaultSlideshowInterval(d time.Duration) Option {
	return func(s *Store) {
		if secs := int(d / time.Second); secs > 0 {
			s.defaultInterval = secs
		}
	}
}

// WithClock overrides the time source used for timestamps and cache expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (creating if needed) the database at path and applies pending
// migrations.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA temp_store = memory",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	s := &Store{db: db, defaultInterval: 30, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	n, err := (&migrator{db: db}).migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if n > 0 {
		logger.Infof("applied %d migrations to %s", n, path)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Catalog is the result of the last fetch for an address.
type Catalog struct {
	Ordinals    []ordinals.Ordinal `json:"ordinals"`
	LastUpdated *time.Time         `json:"last_updated"`
	Address     string             `json:"address"`
	TotalCount  int                `json:"total_count"`
	ImageCount  int                `json:"image_count"`
}

// Selection is the stored display selection.
type Selection struct {
	SelectedIDs       []string   `json:"selected_ids"`
	SlideshowInterval int        `json:"slideshow_interval"`
	LastUpdated       *time.Time `json:"last_updated,omitempty"`
}

// SaveCatalog replaces the stored catalog. LastUpdated is set to now.
func (s *Store) SaveCatalog(ctx context.Context, c Catalog) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				logger.Warnf("failed to rollback catalog save: %v", err)
			}
		}
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM ordinals"); err != nil {
		return fmt.Errorf("clearing ordinals: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT OR REPLACE INTO ordinals (id, position, rarity, data) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			logger.Warnf("failed to close statement: %v", err)
		}
	}()

	for i, o := range c.Ordinals {
		data, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("marshaling ordinal %s: %w", o.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, o.ID, i, o.Rarity(), string(data)); err != nil {
			return fmt.Errorf("inserting ordinal %s: %w", o.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO catalog (id, address, total_count, image_count, last_updated)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			address = excluded.address,
			total_count = excluded.total_count,
			image_count = excluded.image_count,
			last_updated = excluded.last_updated`,
		c.Address, c.TotalCount, c.ImageCount, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("updating catalog: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing catalog: %w", err)
	}
	committed = true
	return nil
}

// Catalog returns the stored catalog, or an empty one when nothing was
// fetched yet.
func (s *Store) Catalog(ctx context.Context) (Catalog, error) {
	c := Catalog{Ordinals: []ordinals.Ordinal{}}

	var lastUpdated sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT address, total_count, image_count, last_updated FROM catalog WHERE id = 1").
		Scan(&c.Address, &c.TotalCount, &c.ImageCount, &lastUpdated)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("querying catalog: %w", err)
	}
	c.LastUpdated = parseTime(lastUpdated)

	list, err := s.queryOrdinals(ctx, "SELECT data FROM ordinals ORDER BY position")
	if err != nil {
		return c, err
	}
	c.Ordinals = list
	return c, nil
}

func (s *Store) queryOrdinals(ctx context.Context, query string, args ...any) ([]ordinals.Ordinal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ordinals: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Warnf("failed to close rows: %v", err)
		}
	}()

	list := []ordinals.Ordinal{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning ordinal: %w", err)
		}
		var o ordinals.Ordinal
		if err := json.Unmarshal([]byte(data), &o); err != nil {
			return nil, fmt.Errorf("decoding ordinal: %w", err)
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

// Selection returns the stored selection. A never-saved selection is empty
// and reports the default slideshow interval.
func (s *Store) Selection(ctx context.Context) (Selection, error) {
	sel := Selection{SelectedIDs: []string{}, SlideshowInterval: s.defaultInterval}

	var ids string
	var interval int
	var lastUpdated sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT selected_ids, slideshow_interval, last_updated FROM selection WHERE id = 1").
		Scan(&ids, &interval, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return sel, nil
	}
	if err != nil {
		return sel, fmt.Errorf("querying selection: %w", err)
	}

	if err := json.Unmarshal([]byte(ids), &sel.SelectedIDs); err != nil {
		return sel, fmt.Errorf("decoding selected ids: %w", err)
	}
	if sel.SelectedIDs == nil {
		sel.SelectedIDs = []string{}
	}
	if interval > 0 {
		sel.SlideshowInterval = interval
	}
	sel.LastUpdated = parseTime(lastUpdated)
	return sel, nil
}

// SaveSelection replaces the selected ids. Last write wins.
func (s *Store) SaveSelection(ctx context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshaling selection: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO selection (id, selected_ids, last_updated) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			selected_ids = excluded.selected_ids,
			last_updated = excluded.last_updated`,
		string(data), formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("saving selection: %w", err)
	}
	logger.Infof("updated selection: %d ordinals selected", len(ids))
	return nil
}

// LoadSelection returns only the selected ids.
func (s *Store) LoadSelection(ctx context.Context) ([]string, error) {
	sel, err := s.Selection(ctx)
	if err != nil {
		return nil, err
	}
	return sel.SelectedIDs, nil
}

// SetSlideshowInterval stores the per-selection slideshow interval.
func (s *Store) SetSlideshowInterval(ctx context.Context, d time.Duration) error {
	secs := int(d / time.Second)
	if secs <= 0 {
		return fmt.Errorf("slideshow interval must be at least one second, got %s", d)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO selection (id, slideshow_interval) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET slideshow_interval = excluded.slideshow_interval`,
		secs)
	if err != nil {
		return fmt.Errorf("saving slideshow interval: %w", err)
	}
	return nil
}

// SelectedOrdinals returns the catalog items that are selected, in catalog
// order. Selected ids missing from the catalog are skipped.
func (s *Store) SelectedOrdinals(ctx context.Context) ([]ordinals.Ordinal, error) {
	sel, err := s.Selection(ctx)
	if err != nil {
		return nil, err
	}
	if len(sel.SelectedIDs) == 0 {
		return []ordinals.Ordinal{}, nil
	}
	data, err := json.Marshal(sel.SelectedIDs)
	if err != nil {
		return nil, fmt.Errorf("marshaling selection: %w", err)
	}
	return s.queryOrdinals(ctx,
		"SELECT data FROM ordinals WHERE id IN (SELECT value FROM json_each(?)) ORDER BY position",
		string(data))
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil
	}
	return &t
}
