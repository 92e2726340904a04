package dto

import "github.com/ahmetcoskunkizilkaya/fellowship/internal/content"

type CreatedResponse struct {
	ID string `json:"id"`
}

type SnapshotResponse struct {
	Collection string         `json:"collection"`
	Window     int            `json:"window"`
	Empty      bool           `json:"empty"`
	Items      []content.View `json:"items"`
}
