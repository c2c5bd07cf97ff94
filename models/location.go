package models

import "time"

// Location is one row of the station dataset: a canonical location code
// joined to the reference identifier encoded into its scannable label.
// Rows are seeded once from the dataset file and treated as read-only.
type Location struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Location    string `gorm:"size:64;not null;uniqueIndex"`
	ReferenceID string `gorm:"column:reference_id;size:255;not null"`
	Type        string `gorm:"size:64;not null;index"`
}
