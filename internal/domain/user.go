package domain

import "time"

// User represents a registered user of the system.
type User struct {
	ID            string
	Username      string
	FavoriteGenre string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
