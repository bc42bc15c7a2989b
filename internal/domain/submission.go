package domain

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// SubmissionStatus is the state of one proposed photo ordering.
// SUBMITTED is the initial observable state; APPROVED and CHANGES_REQUESTED are
// both terminal for that submission instance.
type SubmissionStatus string

const (
	SubmissionDraft            SubmissionStatus = "DRAFT"
	SubmissionSubmitted        SubmissionStatus = "SUBMITTED"
	SubmissionChangesRequested SubmissionStatus = "CHANGES_REQUESTED"
	SubmissionApproved         SubmissionStatus = "APPROVED"
)

func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionDraft, SubmissionSubmitted, SubmissionChangesRequested, SubmissionApproved:
		return true
	}
	return false
}

// Submission is one proposed photo ordering awaiting approval from the opposite
// party. ApproverRole is always the counterpart of InitiatorRole.
type Submission struct {
	ID                string `gorm:"primaryKey;size:36"`
	ListingID         string `gorm:"index;size:36"`
	InitiatorRole     Role   `gorm:"size:20"`
	ApproverRole      Role   `gorm:"size:20"`
	Status            SubmissionStatus `gorm:"size:20;default:'SUBMITTED'"`
	OrderedPhotoIDs   datatypes.JSON
	Note              *string
	SubmittedByUserID string  `gorm:"size:36"`
	ApprovedByUserID  *string `gorm:"size:36"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	SubmittedAt       time.Time
	ApprovedAt        *time.Time
}

// Snapshot decodes the ordered photo id snapshot taken at proposal time.
func (s *Submission) Snapshot() []string {
	var ids []string
	if len(s.OrderedPhotoIDs) == 0 {
		return ids
	}
	// snapshot was written by SetSnapshot, decode failure means nothing usable
	_ = json.Unmarshal(s.OrderedPhotoIDs, &ids)
	return ids
}

// SetSnapshot stores the ordered photo ids as the JSON snapshot column.
func (s *Submission) SetSnapshot(ids []string) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	s.OrderedPhotoIDs = datatypes.JSON(raw)
	return nil
}
