package http

import (
	"time"

	"github.com/fyrsmithlabs/companiond/internal/behavior"
	"github.com/fyrsmithlabs/companiond/internal/bond"
	"github.com/fyrsmithlabs/companiond/internal/compression"
	"github.com/fyrsmithlabs/companiond/internal/milestone"
	"github.com/fyrsmithlabs/companiond/internal/orchestrator"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// MessageRequest is the request body for POST .../messages.
type MessageRequest struct {
	Message string                `json:"message"`
	History []compression.Message `json:"history,omitempty"`
	Plan    string                `json:"plan,omitempty"`
}

// MessageResponse is the response body for POST .../messages.
type MessageResponse struct {
	ResponseText   string                `json:"response_text"`
	Milestones     []milestone.Milestone `json:"milestones"`
	BondStatus     bond.Status           `json:"bond_status"`
	Path           orchestrator.Path     `json:"path"`
	Degraded       bool                  `json:"degraded,omitempty"`
	DegradedReason string                `json:"degraded_reason,omitempty"`
	Tier           bond.Tier             `json:"tier"`
	Affinity       int                   `json:"affinity"`
	Rarity         bond.Rarity           `json:"rarity"`
	Window         compression.Window    `json:"window"`
}

func newMessageResponse(res *orchestrator.Result) MessageResponse {
	ms := res.Milestones
	if ms == nil {
		ms = []milestone.Milestone{}
	}
	return MessageResponse{
		ResponseText:   res.ResponseText,
		Milestones:     ms,
		BondStatus:     res.BondStatus,
		Path:           res.Path,
		Degraded:       res.Degraded,
		DegradedReason: res.DegradedReason,
		Tier:           res.Tier,
		Affinity:       res.Affinity,
		Rarity:         res.Rarity,
		Window:         res.Window,
	}
}

// BondResponse is the response body for GET .../bond.
type BondResponse struct {
	CompanionID        string      `json:"companion_id"`
	UserID             string      `json:"user_id"`
	Tier               bond.Tier   `json:"tier"`
	Affinity           int         `json:"affinity"`
	Rarity             bond.Rarity `json:"rarity"`
	Status             bond.Status `json:"status"`
	TotalInteractions  uint64      `json:"total_interactions"`
	DurationDays       int         `json:"duration_days"`
	FirstInteractionAt time.Time   `json:"first_interaction_at"`
	LastInteractionAt  time.Time   `json:"last_interaction_at"`
}

func newBondResponse(b bond.Bond) BondResponse {
	return BondResponse{
		CompanionID:        b.CompanionID,
		UserID:             b.UserID,
		Tier:               b.Tier,
		Affinity:           b.Affinity,
		Rarity:             b.Rarity,
		Status:             b.Status,
		TotalInteractions:  b.TotalInteractions,
		DurationDays:       b.DurationDays,
		FirstInteractionAt: b.FirstInteractionAt,
		LastInteractionAt:  b.LastInteractionAt,
	}
}

// ProgressionResponse is the response body for GET .../progression.
type ProgressionResponse = behavior.ProgressionState

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}
