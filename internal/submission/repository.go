package submission

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"photo-listing-portal/internal/domain"
)

type SubmissionRepository interface {
	Create(ctx context.Context, sub *domain.Submission) error
	FindByID(ctx context.Context, id string) (*domain.Submission, error)
	// Latest returns the most recent submission for the listing, optionally
	// restricted to the given statuses.
	Latest(ctx context.Context, listingID string, statuses []domain.SubmissionStatus) (*domain.Submission, error)
	// ResolveIf moves the submission out of from into to and records the
	// reviewer, as one conditional update. A non-nil note replaces the
	// submission's note (the reviewer's feedback on request-changes). Returns
	// false when the submission was no longer in from, so a review round is
	// decided exactly once.
	ResolveIf(ctx context.Context, id string, from, to domain.SubmissionStatus, reviewerID string, note *string) (bool, error)
}

type SubmissionRepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new submission repository
func NewRepository(db *gorm.DB) SubmissionRepository {
	return &SubmissionRepositoryImpl{db: db}
}

func (r *SubmissionRepositoryImpl) Create(ctx context.Context, sub *domain.Submission) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = now
	}
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *SubmissionRepositoryImpl) FindByID(ctx context.Context, id string) (*domain.Submission, error) {
	var sub domain.Submission
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *SubmissionRepositoryImpl) Latest(ctx context.Context, listingID string, statuses []domain.SubmissionStatus) (*domain.Submission, error) {
	query := r.db.WithContext(ctx).Where("listing_id = ?", listingID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	var sub domain.Submission
	err := query.Order("created_at DESC").First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *SubmissionRepositoryImpl) ResolveIf(ctx context.Context, id string, from, to domain.SubmissionStatus, reviewerID string, note *string) (bool, error) {
	now := time.Now().UTC()
	updates := map[string]any{
		"status":              to,
		"approved_by_user_id": reviewerID,
		"approved_at":         now,
		"updated_at":          now,
	}
	if note != nil {
		updates["note"] = *note
	}
	result := r.db.WithContext(ctx).Model(&domain.Submission{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
