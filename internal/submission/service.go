package submission

import (
	"context"
	defError "errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"photo-listing-portal/internal/cache"
	"photo-listing-portal/internal/domain"
	"photo-listing-portal/internal/errors"
	"photo-listing-portal/internal/notify"
	"photo-listing-portal/internal/permission"
)

// ListingProvider looks up the listing a submission belongs to and applies the
// listing-level status transition an approval may trigger.
type ListingProvider interface {
	FindByID(ctx context.Context, id string) (*domain.Listing, error)
	UpdateStatusIf(ctx context.Context, id string, from []domain.ListingStatus, to domain.ListingStatus) (bool, error)
}

// UserProvider resolves listing owners for notifications.
type UserProvider interface {
	GetUserByID(id string) (*domain.User, error)
}

// SubmissionView is the API shape of a submission.
type SubmissionView struct {
	ID            string                  `json:"id"`
	ListingID     string                  `json:"listing_id"`
	InitiatorRole domain.Role             `json:"initiator_role"`
	ApproverRole  domain.Role             `json:"approver_role"`
	Status        domain.SubmissionStatus `json:"status"`
	PhotoIDs      []string                `json:"photo_ids"`
	Note          *string                 `json:"note"`
	SubmittedBy   string                  `json:"submitted_by_user_id"`
	ApprovedBy    *string                 `json:"approved_by_user_id"`
	SubmittedAt   time.Time               `json:"submitted_at"`
	ApprovedAt    *time.Time              `json:"approved_at"`
}

// Service defines the interface for submission business logic
type Service interface {
	Propose(ctx context.Context, u *domain.User, listingID string, photoIDs []string, note *string) (*SubmissionView, error)
	Approve(ctx context.Context, u *domain.User, listingID, submissionID string) (*SubmissionView, error)
	RequestChanges(ctx context.Context, u *domain.User, listingID, submissionID string, note string) (*SubmissionView, error)
	Latest(ctx context.Context, u *domain.User, listingID string) (*SubmissionView, error)
}

// DefaultService implements Service
type DefaultService struct {
	repository SubmissionRepository
	listings   ListingProvider
	users      UserProvider
	notifier   notify.Notifier
	cache      *cache.Cache
}

// NewService creates a new submission service
func NewService(
	repository SubmissionRepository,
	listings ListingProvider,
	users UserProvider,
	notifier notify.Notifier,
	c *cache.Cache,
) Service {
	return &DefaultService{
		repository: repository,
		listings:   listings,
		users:      users,
		notifier:   notifier,
		cache:      c,
	}
}

func toSubmissionView(s *domain.Submission) *SubmissionView {
	return &SubmissionView{
		ID:            s.ID,
		ListingID:     s.ListingID,
		InitiatorRole: s.InitiatorRole,
		ApproverRole:  s.ApproverRole,
		Status:        s.Status,
		PhotoIDs:      s.Snapshot(),
		Note:          s.Note,
		SubmittedBy:   s.SubmittedByUserID,
		ApprovedBy:    s.ApprovedByUserID,
		SubmittedAt:   s.SubmittedAt,
		ApprovedAt:    s.ApprovedAt,
	}
}

func (s *DefaultService) getListing(ctx context.Context, id string) (*domain.Listing, error) {
	listing, err := s.listings.FindByID(ctx, id)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Listing not found", err)
		}
		return nil, err
	}
	return listing, nil
}

func (s *DefaultService) ownerEmail(listing *domain.Listing, u *domain.User) string {
	if u != nil && u.ID == listing.UserID {
		return u.Email
	}
	owner, err := s.users.GetUserByID(listing.UserID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", listing.UserID).Msg("could not resolve listing owner for notification")
		return ""
	}
	return owner.Email
}

func (s *DefaultService) event(listing *domain.Listing, u *domain.User, note string) notify.Event {
	return notify.Event{
		ListingID:  listing.ID,
		Address:    listing.Address,
		ActorName:  u.Name,
		ActorEmail: u.Email,
		OwnerEmail: s.ownerEmail(listing, u),
		PhotoCount: listing.ActivePhotoCount(),
		Note:       note,
	}
}

// Propose opens a review round with a snapshot of the proposed photo order.
// Proposing is a listings-team action: the round is initiated by LISTINGS and
// awaits the advisor's approval.
func (s *DefaultService) Propose(ctx context.Context, u *domain.User, listingID string, photoIDs []string, note *string) (*SubmissionView, error) {
	if !permission.IsListingsTeamOrAdmin(permission.Actor{ID: u.ID, Role: u.Role}) {
		return nil, errors.Forbidden("Only the listings team can propose a photo order", nil)
	}

	listing, err := s.getListing(ctx, listingID)
	if err != nil {
		return nil, err
	}

	if len(photoIDs) == 0 {
		return nil, errors.BadRequest("photo_ids must not be empty", nil)
	}
	seen := make(map[string]bool, len(photoIDs))
	for _, photoID := range photoIDs {
		if seen[photoID] {
			return nil, errors.BadRequest(fmt.Sprintf("Duplicate photo id %s", photoID), nil)
		}
		seen[photoID] = true
		if !listing.HasPhoto(photoID) {
			return nil, errors.BadRequest(fmt.Sprintf("Photo %s does not belong to this listing", photoID), nil)
		}
	}

	sub := &domain.Submission{
		ListingID:         listingID,
		InitiatorRole:     domain.RoleListings,
		ApproverRole:      domain.RoleAdvisor,
		Status:            domain.SubmissionSubmitted,
		Note:              note,
		SubmittedByUserID: u.ID,
	}
	if err := sub.SetSnapshot(photoIDs); err != nil {
		return nil, errors.Internal(fmt.Errorf("encode snapshot: %w", err))
	}
	if err := s.repository.Create(ctx, sub); err != nil {
		return nil, err
	}

	noteText := ""
	if note != nil {
		noteText = *note
	}
	s.notifier.OrderProposed(ctx, s.event(listing, u, noteText))

	return toSubmissionView(sub), nil
}

// Approve resolves a review round in favor of the proposed order. The caller's
// role must match the submission's approver role; admins may always review.
// When the approver also holds the listing-approve capability the listing
// itself moves to APPROVED in the same request.
func (s *DefaultService) Approve(ctx context.Context, u *domain.User, listingID, submissionID string) (*SubmissionView, error) {
	sub, listing, err := s.loadForReview(ctx, u, listingID, submissionID)
	if err != nil {
		return nil, err
	}

	won, err := s.repository.ResolveIf(ctx, submissionID, domain.SubmissionSubmitted, domain.SubmissionApproved, u.ID, nil)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, errors.BadRequest("Submission is not in SUBMITTED status", nil)
	}

	now := time.Now().UTC()
	sub.Status = domain.SubmissionApproved
	sub.ApprovedByUserID = &u.ID
	sub.ApprovedAt = &now

	if permission.CanApproveListing(permission.Actor{ID: u.ID, Role: u.Role}) {
		// best effort: an already approved listing is left alone
		if _, err := s.listings.UpdateStatusIf(ctx, listingID,
			[]domain.ListingStatus{domain.ListingDraft, domain.ListingSubmitted}, domain.ListingApproved); err != nil {
			log.Warn().Err(err).Str("listing_id", listingID).Msg("listing transition after submission approval failed")
		}
	}

	s.invalidate(ctx, listing.UserID)
	s.notifier.SubmissionApproved(ctx, s.event(listing, u, ""), sub.InitiatorRole)

	return toSubmissionView(sub), nil
}

// RequestChanges resolves a review round against the proposed order. The
// listing stays SUBMITTED; the initiating side is told what to change.
func (s *DefaultService) RequestChanges(ctx context.Context, u *domain.User, listingID, submissionID string, note string) (*SubmissionView, error) {
	sub, listing, err := s.loadForReview(ctx, u, listingID, submissionID)
	if err != nil {
		return nil, err
	}

	// the reviewer's note replaces the proposer's, so readers of the
	// submission later see what was asked for
	won, err := s.repository.ResolveIf(ctx, submissionID, domain.SubmissionSubmitted, domain.SubmissionChangesRequested, u.ID, &note)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, errors.BadRequest("Submission is not in SUBMITTED status", nil)
	}

	now := time.Now().UTC()
	sub.Status = domain.SubmissionChangesRequested
	sub.ApprovedByUserID = &u.ID
	sub.ApprovedAt = &now
	sub.Note = &note

	s.notifier.ChangesRequested(ctx, s.event(listing, u, note), sub.InitiatorRole)

	return toSubmissionView(sub), nil
}

// Latest returns the most recent submission for the listing.
func (s *DefaultService) Latest(ctx context.Context, u *domain.User, listingID string) (*SubmissionView, error) {
	listing, err := s.getListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !permission.CanAccessListing(permission.Actor{ID: u.ID, Role: u.Role}, listing.UserID) {
		return nil, errors.Forbidden("You do not have access to this listing", nil)
	}

	sub, err := s.repository.Latest(ctx, listingID, nil)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("No submission for this listing", err)
		}
		return nil, err
	}
	return toSubmissionView(sub), nil
}

func (s *DefaultService) loadForReview(ctx context.Context, u *domain.User, listingID, submissionID string) (*domain.Submission, *domain.Listing, error) {
	sub, err := s.repository.FindByID(ctx, submissionID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, errors.NotFound("Submission not found", err)
		}
		return nil, nil, err
	}
	if sub.ListingID != listingID {
		return nil, nil, errors.BadRequest("Submission does not belong to this listing", nil)
	}

	listing, err := s.getListing(ctx, listingID)
	if err != nil {
		return nil, nil, err
	}

	if !permission.CanReviewSubmission(permission.Actor{ID: u.ID, Role: u.Role}, sub.ApproverRole) {
		return nil, nil, errors.Forbidden("You are not authorized to review this submission", nil)
	}
	return sub, listing, nil
}

func (s *DefaultService) invalidate(ctx context.Context, ownerID string) {
	s.cache.IncrementVersion(ctx, "listings:version:"+ownerID)
	s.cache.IncrementVersion(ctx, "listings:version:all")
}
