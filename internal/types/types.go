package types

import "time"

type Event struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Ts      time.Time      `json:"timestamp"`
	Payload map[string]any `json:"payload,omitempty"`
}

type Session struct {
	ID        string    `json:"session_id"`
	Dish      string    `json:"dish,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Status    string    `json:"status"`

	LiveConnected bool       `json:"live_connected"`
	LastEventAt   *time.Time `json:"last_event_at,omitempty"`
}

// Session statuses.
const (
	StatusCreated = "created"
	StatusCooking = "cooking"
	StatusReset   = "reset"
	StatusEnded   = "ended"
)
