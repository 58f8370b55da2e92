package domain

import "time"

// TourPackage is a catalog entry. Bookings snapshot its name, destination and
// price at creation time; edits here never rewrite existing bookings.
type TourPackage struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Slug            string    `json:"slug"`
	Destination     string    `json:"destination"`
	Description     string    `json:"description"`
	Price           int64     `json:"price"`
	DurationDays    int       `json:"duration_days"`
	MaxParticipants int       `json:"max_participants"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (p *TourPackage) Snapshot() PackageSnapshot {
	return PackageSnapshot{
		PackageID:   p.ID,
		Name:        p.Name,
		Destination: p.Destination,
		Price:       p.Price,
	}
}
