package models

type Service struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Department      string `json:"department"`
	BaselineMinutes int    `json:"baseline_minutes"`
	IsActive        bool   `json:"is_active"`
	OpensAt         string `json:"opens_at,omitempty"`  // "HH:MM" or "HH:MM:SS", empty means always open
	ClosesAt        string `json:"closes_at,omitempty"` // may be earlier than OpensAt for night clinics
}
