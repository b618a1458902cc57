// Package catalog fetches the inscriptions of an address and stores the
// displayable ones as the current catalog.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/rubiojr/ordframe/pkg/log"
	"github.com/rubiojr/ordframe/pkg/ordinals"
	"github.com/rubiojr/ordframe/pkg/realtime"
	"github.com/rubiojr/ordframe/pkg/store"
)

var logger = log.ForService("catalog")

// Source lists the inscriptions held by an address. *hiro.Client
// implements it.
type Source interface {
	FetchAddressInscriptions(ctx context.Context, address string) ([]ordinals.Ordinal, error)
}

// Result summarises a fetch.
type Result struct {
	Address    string
	Ordinals   []ordinals.Ordinal
	TotalCount int
	ImageCount int
}

// Message is the line shown to the user after a successful fetch.
func (r Result) Message() string {
	return fmt.Sprintf("Found %d image inscriptions", r.ImageCount)
}

type Service struct {
	source Source
	store  *store.Store
	hub    *realtime.Hub
}

// NewService wires a fetch source to the store. hub may be nil.
func NewService(source Source, st *store.Store, hub *realtime.Hub) *Service {
	return &Service{source: source, store: st, hub: hub}
}

// FetchAddress validates address, fetches its inscriptions and replaces the
// stored catalog with the displayable ones. Validation errors are returned
// as is so callers can show them verbatim.
func (s *Service) FetchAddress(ctx context.Context, address string) (Result, error) {
	address = strings.TrimSpace(address)
	if _, err := ordinals.ValidateAddress(address); err != nil {
		return Result{}, err
	}

	logger.Infof("Fetching ordinals for address: %s", address)
	all, err := s.source.FetchAddressInscriptions(ctx, address)
	if err != nil {
		return Result{}, fmt.Errorf("fetching inscriptions: %w", err)
	}

	images := ordinals.FilterDisplayable(all)
	res := Result{
		Address:    address,
		Ordinals:   images,
		TotalCount: len(all),
		ImageCount: len(images),
	}

	changed := true
	if prev, err := s.store.Catalog(ctx); err == nil {
		changed = prev.Address != address || !sameIDs(prev.Ordinals, images)
	} else {
		logger.Warnf("Loading previous catalog: %v", err)
	}

	err = s.store.SaveCatalog(ctx, store.Catalog{
		Ordinals:   images,
		Address:    address,
		TotalCount: res.TotalCount,
		ImageCount: res.ImageCount,
	})
	if err != nil {
		return Result{}, fmt.Errorf("saving catalog: %w", err)
	}

	logger.Infof("Stored %d of %d inscriptions for %s", res.ImageCount, res.TotalCount, address)
	if changed && s.hub != nil {
		s.hub.Broadcast(realtime.NewEvent(realtime.EventCatalog, address))
	}
	return res, nil
}

// sameIDs reports whether both lists hold the same ids in the same order.
func sameIDs(a, b []ordinals.Ordinal) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
