// Package export builds the ZIP archives a listing's photos are handed over
// in. Entries follow the effective photo order and are named so they sort
// correctly in any file browser; excluded photos are still shipped, grouped
// under do_not_use/.
package export

import (
	"archive/zip"
	"context"
	defError "errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"photo-listing-portal/internal/domain"
	"photo-listing-portal/internal/errors"
	"photo-listing-portal/internal/permission"
	"photo-listing-portal/internal/storage"
	"photo-listing-portal/internal/submission"
)

// ListingProvider looks up the listing being exported.
type ListingProvider interface {
	FindByID(ctx context.Context, id string) (*domain.Listing, error)
}

// SubmissionProvider resolves the proposal whose photo order the archive
// should follow.
type SubmissionProvider interface {
	FindByID(ctx context.Context, id string) (*domain.Submission, error)
	Latest(ctx context.Context, listingID string, statuses []domain.SubmissionStatus) (*domain.Submission, error)
}

// Archive is a prepared export: resolved order, final filename, ready to
// stream. Preparing and streaming are split so permission and lookup errors
// surface before any response bytes are written.
type Archive struct {
	Filename string

	listing *domain.Listing
	photos  []domain.Photo
	blobs   storage.BlobStore
}

// Service defines the interface for export business logic
type Service interface {
	Prepare(ctx context.Context, u *domain.User, listingID, submissionID string) (*Archive, error)
}

// DefaultService implements Service
type DefaultService struct {
	listings    ListingProvider
	submissions SubmissionProvider
	blobs       storage.BlobStore
}

// NewService creates a new export service
func NewService(listings ListingProvider, submissions SubmissionProvider, blobs storage.BlobStore) Service {
	return &DefaultService{listings: listings, submissions: submissions, blobs: blobs}
}

// Prepare resolves the listing, checks download rights and fixes the photo
// order. An explicit submissionID pins the order to that proposal; otherwise
// the latest proposal still in play (SUBMITTED or APPROVED) wins, and without
// one the live order is used.
func (s *DefaultService) Prepare(ctx context.Context, u *domain.User, listingID, submissionID string) (*Archive, error) {
	listing, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Listing not found", err)
		}
		return nil, err
	}

	if !permission.CanDownloadListing(permission.Actor{ID: u.ID, Role: u.Role}, listing.UserID) {
		return nil, errors.Forbidden("You cannot download this listing", nil)
	}
	if len(listing.Photos) == 0 {
		return nil, errors.BadRequest("Listing has no photos to export", nil)
	}

	snapshot, err := s.resolveSnapshot(ctx, listingID, submissionID)
	if err != nil {
		return nil, err
	}

	return &Archive{
		Filename: listing.SanitizedAddress + "_photos.zip",
		listing:  listing,
		photos:   submission.ResolveEffectiveOrder(snapshot, listing.Photos),
		blobs:    s.blobs,
	}, nil
}

func (s *DefaultService) resolveSnapshot(ctx context.Context, listingID, submissionID string) ([]string, error) {
	if submissionID != "" {
		sub, err := s.submissions.FindByID(ctx, submissionID)
		if err != nil {
			if defError.Is(err, gorm.ErrRecordNotFound) {
				return nil, errors.NotFound("Submission not found", err)
			}
			return nil, err
		}
		if sub.ListingID != listingID {
			return nil, errors.BadRequest("Submission does not belong to this listing", nil)
		}
		return sub.Snapshot(), nil
	}

	sub, err := s.submissions.Latest(ctx, listingID,
		[]domain.SubmissionStatus{domain.SubmissionSubmitted, domain.SubmissionApproved})
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // no proposal, live order applies
		}
		return nil, err
	}
	return sub.Snapshot(), nil
}

// WriteTo streams the archive. Included photos are numbered 001_, 002_, ... in
// the effective order; excluded ones get their own numbering under do_not_use/.
// A photo whose stored file went missing is skipped and logged, never fatal.
func (a *Archive) WriteTo(ctx context.Context, w io.Writer) error {
	zw := zip.NewWriter(w)

	included, excluded := 0, 0
	for i := range a.photos {
		p := &a.photos[i]

		var name string
		if p.Excluded {
			excluded++
			name = fmt.Sprintf("do_not_use/%s_%s.%s", domain.Pad3(excluded), a.listing.SanitizedAddress, p.Ext)
		} else {
			included++
			name = fmt.Sprintf("%s_%s.%s", domain.Pad3(included), a.listing.SanitizedAddress, p.Ext)
		}

		if err := a.writeEntry(ctx, zw, p, name); err != nil {
			return err
		}
	}

	return zw.Close()
}

func (a *Archive) writeEntry(ctx context.Context, zw *zip.Writer, p *domain.Photo, name string) error {
	src, err := a.blobs.Open(ctx, storage.OriginalPath(p.ListingID, p.ID, p.Ext))
	if err != nil {
		log.Warn().Err(err).Str("photo_id", p.ID).Msg("photo file missing, skipped in archive")
		return nil
	}
	defer src.Close()

	// images are already compressed, store them as-is
	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Store,
		Modified: p.CreatedAt,
	})
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, src)
	return err
}
