package domain

import (
	"time"
)

// ListingStatus is the review state of a listing. It only ever advances
// DRAFT -> SUBMITTED -> APPROVED; a change request on a submission leaves the
// listing at SUBMITTED.
type ListingStatus string

const (
	ListingDraft     ListingStatus = "DRAFT"
	ListingSubmitted ListingStatus = "SUBMITTED"
	ListingApproved  ListingStatus = "APPROVED"
)

func (s ListingStatus) Valid() bool {
	switch s {
	case ListingDraft, ListingSubmitted, ListingApproved:
		return true
	}
	return false
}

// Listing is one property's photo collection and its review status.
// Photos are kept ordered by (sort_order, created_at).
type Listing struct {
	ID               string `gorm:"primaryKey;size:36"`
	Address          string
	SanitizedAddress string `gorm:"size:100"`
	Title            string
	UserID           string        `gorm:"index;size:36"`
	Status           ListingStatus `gorm:"size:20;default:'DRAFT'"`
	Photos           []Photo       `gorm:"constraint:OnDelete:CASCADE"`
	Submissions      []Submission  `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Photo is one uploaded image belonging to exactly one listing.
type Photo struct {
	ID           string `gorm:"primaryKey;size:36"`
	ListingID    string `gorm:"index;size:36"`
	OriginalName string
	Filename     string // stored name, {id}.{ext}
	Mime         string
	Ext          string `gorm:"size:10"`
	SortOrder    int
	Excluded     bool `gorm:"default:false"`
	CreatedAt    time.Time
}

// PhotoIDs returns the ids of the listing's photos in their current order.
func (l *Listing) PhotoIDs() []string {
	ids := make([]string, 0, len(l.Photos))
	for _, p := range l.Photos {
		ids = append(ids, p.ID)
	}
	return ids
}

// ActivePhotoCount counts photos not flagged as excluded.
func (l *Listing) ActivePhotoCount() int {
	count := 0
	for _, p := range l.Photos {
		if !p.Excluded {
			count++
		}
	}
	return count
}

// FindPhoto returns the photo with the given id, or nil if the listing
// does not contain it.
func (l *Listing) FindPhoto(photoID string) *Photo {
	for i := range l.Photos {
		if l.Photos[i].ID == photoID {
			return &l.Photos[i]
		}
	}
	return nil
}

// HasPhoto reports whether photoID belongs to this listing.
func (l *Listing) HasPhoto(photoID string) bool {
	return l.FindPhoto(photoID) != nil
}
