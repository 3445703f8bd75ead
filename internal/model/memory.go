// Package model defines core data structures shared by the draft workflow and the record store.
package model

import (
	"time"
)

type UserID string

type MemoryID string

// Location is the place a memory happened. Lat/Lng are nil when the address
// was typed without autocomplete resolution.
type Location struct {
	Address string   `json:"address"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

// Photo is a bound asset. Position is the display order inside the memory.
type Photo struct {
	URL      string `json:"url"`
	Position int    `json:"position"`
}

type Memory struct {
	ID MemoryID `json:"id"`

	Title       string   `json:"title"`
	Description string   `json:"description"`
	Location    Location `json:"location"`

	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	IsPublic  bool      `json:"isPublic"`

	Photos []Photo `json:"photos"`

	Owner       UserID    `json:"owner"`
	CreatedDate time.Time `json:"createdAt"`
}

// NewMemory is the create-record request. PhotoURLs order is the display order.
type NewMemory struct {
	Title       string
	Description string
	Location    Location
	StartDate   time.Time
	EndDate     time.Time
	IsPublic    bool
	PhotoURLs   []string
	Owner       UserID
}
