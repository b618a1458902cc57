package api

import (
	"github.com/rubiojr/ordframe/pkg/ordinals"
	"github.com/rubiojr/ordframe/pkg/store"
)

// MessageResponse is the generic {success, message} reply. Errors use it
// too, with Success false.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type OrdinalsResponse struct {
	Success   bool            `json:"success"`
	Metadata  store.Catalog   `json:"metadata"`
	Selection store.Selection `json:"selection"`
}

type UpdateSelectionRequest struct {
	SelectedIDs []string `json:"selected_ids"`
}

type FetchRequest struct {
	Address string `json:"address"`
}

type FetchResponse struct {
	Success    bool               `json:"success"`
	Message    string             `json:"message"`
	Ordinals   []ordinals.Ordinal `json:"ordinals"`
	TotalCount int                `json:"total_count,omitempty"`
	ImageCount int                `json:"image_count,omitempty"`
}

type HealthConfig struct {
	Debug         bool   `json:"debug"`
	StorageDir    string `json:"storage_dir"`
	OrdinalsCount int    `json:"ordinals_count"`
	SelectedCount int    `json:"selected_count"`
}

type HealthResponse struct {
	Status    string       `json:"status"`
	Version   string       `json:"version"`
	Timestamp string       `json:"timestamp"`
	Config    HealthConfig `json:"config"`
}

type ContentErrorResponse struct {
	Error string `json:"error"`
}
