package models

import "time"

type Template struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	HTML      string     `json:"html"`
	CSS       string     `json:"css,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}
