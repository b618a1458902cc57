// Package refresh keeps the stored catalog current by re-fetching the
// configured address on a ticker, and purges expired cache entries.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rubiojr/ordframe/pkg/catalog"
	"github.com/rubiojr/ordframe/pkg/log"
)

var logger = log.ForService("refresh")

// Fetcher refreshes the catalog for an address. *catalog.Service
// implements it.
type Fetcher interface {
	FetchAddress(ctx context.Context, address string) (catalog.Result, error)
}

// Purger drops expired cache entries. *store.Store implements it.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type Config struct {
	Address string
	// Interval between fetches. Zero disables fetching.
	Interval time.Duration
	// PurgeInterval between cache purges. Zero disables purging.
	PurgeInterval time.Duration
}

type Refresher struct {
	fetcher Fetcher
	purger  Purger

	mu      sync.Mutex
	config  Config
	ctx     context.Context
	cancel  context.CancelFunc
	loopCtl context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

func New(config Config, fetcher Fetcher, purger Purger) *Refresher {
	return &Refresher{config: config, fetcher: fetcher, purger: purger}
}

// Start launches the background loops. It does not block.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("refresher is already running")
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.running = true
	r.startFetchLoop()

	if r.config.PurgeInterval > 0 && r.purger != nil {
		r.wg.Add(1)
		go r.runPurge(r.ctx, r.config.PurgeInterval)
	}
	return nil
}

// startFetchLoop must be called with r.mu held.
func (r *Refresher) startFetchLoop() {
	if r.config.Interval <= 0 || r.config.Address == "" {
		logger.Infof("Catalog refresh disabled (address %q, interval %v)", r.config.Address, r.config.Interval)
		return
	}
	loopCtx, cancel := context.WithCancel(r.ctx)
	r.loopCtl = cancel
	r.wg.Add(1)
	go r.runFetch(loopCtx, r.config.Address, r.config.Interval)
	logger.Infof("Refreshing catalog for %s every %v", r.config.Address, r.config.Interval)
}

// Reconfigure swaps the address and interval, restarting the fetch loop
// when running. Used on config reload.
func (r *Refresher) Reconfigure(config Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	config.PurgeInterval = r.config.PurgeInterval
	if config == r.config {
		return
	}
	r.config = config
	if !r.running {
		return
	}
	if r.loopCtl != nil {
		r.loopCtl()
		r.loopCtl = nil
	}
	r.startFetchLoop()
}

// Stop cancels the loops and waits for them to exit.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	r.wg.Wait()
}

// RefreshNow fetches the configured address once.
func (r *Refresher) RefreshNow(ctx context.Context) error {
	r.mu.Lock()
	address := r.config.Address
	r.mu.Unlock()
	if address == "" {
		return fmt.Errorf("no address configured")
	}
	return r.fetch(ctx, address)
}

func (r *Refresher) fetch(ctx context.Context, address string) error {
	res, err := r.fetcher.FetchAddress(ctx, address)
	if err != nil {
		return err
	}
	logger.Debugf("Refreshed %s: %d image inscriptions of %d", address, res.ImageCount, res.TotalCount)
	return nil
}

func (r *Refresher) runFetch(ctx context.Context, address string, interval time.Duration) {
	defer r.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debugf("Fetch loop for %s stopped", address)
			return
		case <-ticker.C:
			logger.Debugf("Running scheduled fetch for %s", address)
			if err := r.fetch(ctx, address); err != nil && ctx.Err() == nil {
				logger.Warnf("Scheduled fetch failed for %s: %v", address, err)
			}
		}
	}
}

func (r *Refresher) runPurge(ctx context.Context, interval time.Duration) {
	defer r.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.purger.PurgeExpired(ctx)
			if err != nil {
				logger.Warnf("Cache purge failed: %v", err)
				continue
			}
			if n > 0 {
				logger.Debugf("Purged %d expired cache entries", n)
			}
		}
	}
}
