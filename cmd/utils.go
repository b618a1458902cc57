package cmd

import (
	"fmt"
	"io"

	"github.com/rubiojr/ordframe/pkg/catalog"
	"github.com/rubiojr/ordframe/pkg/config"
	"github.com/rubiojr/ordframe/pkg/hiro"
	"github.com/rubiojr/ordframe/pkg/log"
	"github.com/rubiojr/ordframe/pkg/realtime"
	"github.com/rubiojr/ordframe/pkg/store"
)

// openStore opens the database in the configured storage directory.
func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.DBPath(), store.WithDefaultSlideshowInterval(cfg.Display.SlideshowInterval.Duration))
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return st, nil
}

// closeStore closes st, printing a warning on failure.
func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		fmt.Printf("Warning: failed to close store: %v\n", err)
	}
}

// newHiroClient builds an API client that caches responses in st.
func newHiroClient(cfg *config.Config, st *store.Store) *hiro.Client {
	return hiro.NewClient(hiro.Options{
		BaseURL:         cfg.Hiro.BaseURL,
		APIKey:          cfg.Hiro.APIKey,
		Timeout:         cfg.Hiro.RequestTimeout.Duration,
		MaxRetries:      cfg.Hiro.MaxRetries,
		RetryBackoff:    cfg.Hiro.RetryBackoff.Duration,
		ListCacheTTL:    cfg.Hiro.CacheTTL.Duration,
		ContentCacheTTL: cfg.Content.CacheTTL.Duration,
		MaxContentBytes: cfg.Content.MaxContentBytes(),
		Cache:           st,
	})
}

func newCatalogService(cfg *config.Config, st *store.Store, hub *realtime.Hub) *catalog.Service {
	return catalog.NewService(newHiroClient(cfg, st), st, hub)
}

// setupLogging applies the configured level and log file. --debug always
// wins over the configured level. The returned closer is never nil.
func setupLogging(cfg *config.Config, debug bool) (io.Closer, error) {
	if err := log.SetLevel(cfg.LogLevel); err != nil {
		return nopCloser{}, fmt.Errorf("setting log level: %w", err)
	}
	if debug {
		log.SetGlobalDebug(true)
	}
	if cfg.LogFile == "" {
		return nopCloser{}, nil
	}
	closer, err := log.TeeToFile(cfg.LogFile)
	if err != nil {
		return nopCloser{}, fmt.Errorf("opening log file: %w", err)
	}
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
