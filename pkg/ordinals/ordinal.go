// Package ordinals holds the inscription record shared by the viewer, the
// selection picker, the store and the Hiro client, plus the small pure
// helpers the pages need to display one.
package ordinals

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RarityCommon is the rarity assumed when the API reports none.
const RarityCommon = "common"

// Ordinal is one inscription as fetched from the API. It is never mutated
// after the fetch.
type Ordinal struct {
	ID             string         `json:"id"`
	Number         int64          `json:"number"`
	Address        string         `json:"address,omitempty"`
	ContentType    string         `json:"content_type"`
	ContentLength  int64          `json:"content_length"`
	ContentURL     string         `json:"content_url,omitempty"`
	Timestamp      int64          `json:"timestamp,omitempty"`
	SatOrdinal     string         `json:"sat_ordinal,omitempty"`
	SatRarity      string         `json:"sat_rarity,omitempty"`
	Fee            int64          `json:"fee,omitempty"`
	Value          int64          `json:"value,omitempty"`
	BlockHeight    int64          `json:"block_height,omitempty"`
	TxID           string         `json:"tx_id,omitempty"`
	CollectionSlug string         `json:"collection_slug,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Kind tells the viewer how to embed the content.
type Kind string

const (
	KindImage Kind = "image"
	KindHTML  Kind = "html"
)

// ContentPath is the local proxy path the viewer loads the content from.
func (o Ordinal) ContentPath() string {
	return "/content/" + o.ID
}

// Kind returns KindHTML for text/html inscriptions and KindImage otherwise.
func (o Ordinal) Kind() Kind {
	if strings.Contains(o.ContentType, "text/html") {
		return KindHTML
	}
	return KindImage
}

// Rarity returns the sat rarity, defaulting to common.
func (o Ordinal) Rarity() string {
	if o.SatRarity == "" {
		return RarityCommon
	}
	return o.SatRarity
}

// IsRare reports a non-common rarity. Unknown rarity is not rare.
func (o Ordinal) IsRare() bool {
	return o.SatRarity != "" && o.SatRarity != RarityCommon
}

// IsDisplayable reports whether the frame can show the content.
func (o Ordinal) IsDisplayable() bool {
	ct := strings.ToLower(o.ContentType)
	return strings.Contains(ct, "image") || strings.Contains(ct, "svg")
}

// Overlay is the metadata overlay shown on top of the current item.
type Overlay struct {
	Title       string `json:"title"`
	ID          string `json:"id"`
	Type        string `json:"type"`
	Size        string `json:"size"`
	Collection  string `json:"collection,omitempty"`
	Block       string `json:"block"`
	Rarity      string `json:"rarity"`
	RarityClass string `json:"rarity_class"`
}

// Overlay builds the overlay view for o.
func (o Ordinal) Overlay() Overlay {
	ov := Overlay{
		Title:      fmt.Sprintf("Inscription #%d", o.Number),
		ID:         o.ID,
		Type:       o.ContentType,
		Size:       FormatFileSize(o.ContentLength),
		Collection: o.CollectionSlug,
		Block:      "Unknown",
		Rarity:     o.Rarity(),
	}
	if ov.Type == "" {
		ov.Type = "Unknown"
	}
	if o.BlockHeight != 0 {
		ov.Block = fmt.Sprintf("%d", o.BlockHeight)
	}
	ov.RarityClass = "rarity-badge rarity-" + strings.ToLower(ov.Rarity)
	return ov
}

// FormatFileSize renders a byte count the way the overlay shows it.
func FormatFileSize(bytes int64) string {
	switch {
	case bytes <= 0:
		return "Unknown"
	case bytes < 1024:
		return fmt.Sprintf("%d B", bytes)
	case bytes < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	}
}

// ParseList decodes a page-embedded JSON list. On failure it returns an
// empty, non-nil list together with the error so callers can fall back to
// the error screen.
func ParseList(data []byte) ([]Ordinal, error) {
	var list []Ordinal
	if err := json.Unmarshal(data, &list); err != nil {
		return []Ordinal{}, fmt.Errorf("parsing ordinals: %w", err)
	}
	if list == nil {
		list = []Ordinal{}
	}
	return list, nil
}

// FilterDisplayable keeps the items the frame can show, preserving order.
func FilterDisplayable(list []Ordinal) []Ordinal {
	out := make([]Ordinal, 0, len(list))
	for _, o := range list {
		if o.IsDisplayable() {
			out = append(out, o)
		}
	}
	return out
}

// IDs returns the ids of list in order.
func IDs(list []Ordinal) []string {
	ids := make([]string, len(list))
	for i, o := range list {
		ids[i] = o.ID
	}
	return ids
}
