package types

import "time"

// PageData is passed to every page template.
type PageData struct {
	Title   string
	Version string
	Error   string
	Success string

	// Catalog summary
	Address     string
	TotalCount  int
	ImageCount  int
	LastUpdated *time.Time

	// Select page
	Cards         []OrdinalCard
	SelectedCount int
	SaveEnabled   bool

	// Redirect, when set, makes the page move on by itself.
	Redirect      string
	RedirectAfter int

	// Frame page
	OrdinalsJSON string
	Interval     int
}

// OrdinalCard is one tile of the selection grid.
type OrdinalCard struct {
	ID          string
	Title       string
	ContentPath string
	Type        string
	Size        string
	Collection  string
	Rarity      string
	RarityLabel string
	RarityClass string
	IsHTML      bool
	Selected    bool
}
