package domain

import "time"

// Encounter is the single combat row owned by a session.
type Encounter struct {
	CombatID   string `json:"combatId"`
	CampaignID string `json:"campaignId"`
	Phase      Phase  `json:"phase"`
	Round      int    `json:"round"`
	// TurnIndex is -1 when no turn is active.
	TurnIndex      int       `json:"turnIndex"`
	ActiveEntityID string    `json:"activeEntityId,omitempty"`
	Version        int64     `json:"version"`
	StartedAt      time.Time `json:"startedAt"`
	LastUpdatedAt  time.Time `json:"lastUpdatedAt"`
}

// GridConfig describes the battle grid overlay.
type GridConfig struct {
	Rows     int     `json:"rows"`
	Cols     int     `json:"cols"`
	CellSize int     `json:"cellSize"`
	OffsetX  int     `json:"offsetX"`
	OffsetY  int     `json:"offsetY"`
	Visible  bool    `json:"visible"`
	Opacity  float64 `json:"opacity"`
}

// DefaultGridConfig is used until the GM configures the grid.
func DefaultGridConfig() GridConfig {
	return GridConfig{Rows: 20, Cols: 20, CellSize: 50, Visible: true, Opacity: 0.5}
}

// MapConfig describes the battle map image.
type MapConfig struct {
	ImageURL    string `json:"imageUrl,omitempty"`
	ImageKey    string `json:"imageKey,omitempty"`
	ImageWidth  int    `json:"imageWidth,omitempty"`
	ImageHeight int    `json:"imageHeight,omitempty"`
	TemplateID  string `json:"templateId,omitempty"`
}

// LogEntry is an append-only combat log record.
type LogEntry struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Payload   string    `json:"payload,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// PendingAction is a readied action waiting on its trigger.
type PendingAction struct {
	ID         string    `json:"id"`
	EntityID   string    `json:"entityId"`
	Trigger    string    `json:"trigger"`
	ActionType string    `json:"actionType"`
	CreatedAt  time.Time `json:"createdAt"`
}
