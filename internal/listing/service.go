package listing

import (
	"context"
	defError "errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"photo-listing-portal/internal/cache"
	"photo-listing-portal/internal/domain"
	"photo-listing-portal/internal/errors"
	"photo-listing-portal/internal/notify"
	"photo-listing-portal/internal/permission"
	"photo-listing-portal/internal/storage"
	"photo-listing-portal/internal/thumbnail"
	"photo-listing-portal/internal/worker"
)

// RetentionDays is how long a listing may go untouched before the cleanup
// sweep removes it along with its photos.
const RetentionDays = 30

const listCacheTTL = 5 * time.Minute

// UserProvider resolves listing owners for notifications.
type UserProvider interface {
	GetUserByID(id string) (*domain.User, error)
}

// TaskRunner queues best-effort background jobs.
type TaskRunner interface {
	Submit(t worker.Task)
}

// PhotoView is the API shape of a photo record.
type PhotoView struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"original_name"`
	Mime         string    `json:"mime"`
	Ext          string    `json:"ext"`
	SortOrder    int       `json:"sort_order"`
	Excluded     bool      `json:"excluded"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListingView is the API shape of a listing with its ordered photos.
type ListingView struct {
	ID               string               `json:"id"`
	Address          string               `json:"address"`
	SanitizedAddress string               `json:"sanitized_address"`
	Title            string               `json:"title"`
	UserID           string               `json:"user_id"`
	Status           domain.ListingStatus `json:"status"`
	PhotoIDs         []string             `json:"photo_ids"`
	Photos           []PhotoView          `json:"photos"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// ListOptions filters the listing index.
type ListOptions struct {
	All    bool
	Status domain.ListingStatus
	Search string
	Limit  int
	Offset int
}

// ListingPage is one page of the listing index.
type ListingPage struct {
	Listings []ListingView `json:"listings"`
	Meta     ListMeta      `json:"meta"`
}

// CleanupResult reports one retention sweep. Errors never abort the sweep;
// every stale listing gets an attempt.
type CleanupResult struct {
	DeletedCount int      `json:"deleted_count"`
	DeletedIDs   []string `json:"deleted_ids"`
	Errors       []string `json:"errors"`
}

// Service defines the interface for listing business logic
type Service interface {
	Create(ctx context.Context, u *domain.User, address, title string) (*ListingView, error)
	List(ctx context.Context, u *domain.User, opts ListOptions) (*ListingPage, error)
	Get(ctx context.Context, u *domain.User, id string) (*ListingView, error)
	UpdateDetails(ctx context.Context, u *domain.User, id string, address, title *string) (*ListingView, error)
	Reorder(ctx context.Context, u *domain.User, id string, photoIDs []string) (*ListingView, error)
	Submit(ctx context.Context, u *domain.User, id string) (*ListingView, error)
	Approve(ctx context.Context, u *domain.User, id string) (*ListingView, error)
	Delete(ctx context.Context, u *domain.User, id string) error
	AddPhoto(ctx context.Context, u *domain.User, listingID string, data []byte, originalName, mime string) (*PhotoView, error)
	GetPhotoFile(ctx context.Context, u *domain.User, listingID, photoID string, thumb bool) ([]byte, string, error)
	TogglePhotoExcluded(ctx context.Context, u *domain.User, listingID, photoID string) (*PhotoView, error)
	DeletePhoto(ctx context.Context, u *domain.User, listingID, photoID string) error
	CleanupOld(ctx context.Context) (*CleanupResult, error)
}

// DefaultService implements Service
type DefaultService struct {
	repository ListingRepository
	users      UserProvider
	blobs      storage.BlobStore
	notifier   notify.Notifier
	cache      *cache.Cache
	tasks      TaskRunner
}

// NewService creates a new listing service
func NewService(
	repository ListingRepository,
	users UserProvider,
	blobs storage.BlobStore,
	notifier notify.Notifier,
	c *cache.Cache,
	tasks TaskRunner,
) Service {
	return &DefaultService{
		repository: repository,
		users:      users,
		blobs:      blobs,
		notifier:   notifier,
		cache:      c,
		tasks:      tasks,
	}
}

func actorOf(u *domain.User) permission.Actor {
	return permission.Actor{ID: u.ID, Role: u.Role}
}

func toPhotoView(p *domain.Photo) PhotoView {
	return PhotoView{
		ID:           p.ID,
		OriginalName: p.OriginalName,
		Mime:         p.Mime,
		Ext:          p.Ext,
		SortOrder:    p.SortOrder,
		Excluded:     p.Excluded,
		CreatedAt:    p.CreatedAt,
	}
}

func toListingView(l *domain.Listing) *ListingView {
	photos := make([]PhotoView, 0, len(l.Photos))
	for i := range l.Photos {
		photos = append(photos, toPhotoView(&l.Photos[i]))
	}
	return &ListingView{
		ID:               l.ID,
		Address:          l.Address,
		SanitizedAddress: l.SanitizedAddress,
		Title:            l.Title,
		UserID:           l.UserID,
		Status:           l.Status,
		PhotoIDs:         l.PhotoIDs(),
		Photos:           photos,
		CreatedAt:        l.CreatedAt,
		UpdatedAt:        l.UpdatedAt,
	}
}

func (s *DefaultService) getListing(ctx context.Context, id string) (*domain.Listing, error) {
	listing, err := s.repository.FindByID(ctx, id)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Listing not found", err)
		}
		return nil, err
	}
	return listing, nil
}

// invalidate bumps the owner's list version and the cross-user one, so both
// personal and read_all index reads stop hitting stale entries.
func (s *DefaultService) invalidate(ctx context.Context, ownerID string) {
	s.cache.IncrementVersion(ctx, "listings:version:"+ownerID)
	s.cache.IncrementVersion(ctx, "listings:version:all")
}

// ownerEmail resolves the listing owner's address, falling back to the acting
// user when they own the listing. Resolution failure just mutes that email.
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

func (s *DefaultService) event(listing *domain.Listing, u *domain.User) notify.Event {
	ev := notify.Event{
		ListingID:  listing.ID,
		Address:    listing.Address,
		OwnerEmail: s.ownerEmail(listing, u),
		PhotoCount: listing.ActivePhotoCount(),
	}
	if u != nil {
		ev.ActorName = u.Name
		ev.ActorEmail = u.Email
	}
	return ev
}

func (s *DefaultService) Create(ctx context.Context, u *domain.User, address, title string) (*ListingView, error) {
	if !permission.HasPermission(u.Role, permission.ListingCreate) {
		return nil, errors.Forbidden("You are not allowed to create listings", nil)
	}

	address = strings.TrimSpace(address)
	if address == "" {
		return nil, errors.BadRequest("Address is required", nil)
	}

	listing := &domain.Listing{
		Address:          address,
		SanitizedAddress: domain.SanitizeAddress(address),
		Title:            strings.TrimSpace(title),
		UserID:           u.ID,
		Status:           domain.ListingDraft,
	}
	if err := s.repository.Create(ctx, listing); err != nil {
		return nil, err
	}

	s.invalidate(ctx, u.ID)
	s.notifier.ListingCreated(ctx, s.event(listing, u))

	return toListingView(listing), nil
}

func (s *DefaultService) List(ctx context.Context, u *domain.User, opts ListOptions) (*ListingPage, error) {
	if opts.Limit <= 0 || opts.Limit > 200 {
		opts.Limit = 50
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	if opts.Status != "" && !opts.Status.Valid() {
		return nil, errors.BadRequest("Invalid status filter", nil)
	}

	filter := ListFilter{
		UserID: u.ID,
		Status: opts.Status,
		Search: opts.Search,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	}
	scope := u.ID
	if opts.All {
		if !permission.HasPermission(u.Role, permission.ListingReadAll) {
			return nil, errors.Forbidden("You are not allowed to view all listings", nil)
		}
		filter.UserID = ""
		scope = "all"
	}

	version := s.cache.GetVersion(ctx, "listings:version:"+scope)
	cacheKey := fmt.Sprintf("listings:%s:v%d:%s:%s:%d:%d",
		scope, version, opts.Status, opts.Search, opts.Limit, opts.Offset)

	var page ListingPage
	if hit, err := s.cache.Get(ctx, cacheKey, &page); err == nil && hit {
		return &page, nil
	}

	listings, meta, err := s.repository.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	views := make([]ListingView, 0, len(listings))
	for i := range listings {
		views = append(views, *toListingView(&listings[i]))
	}
	page = ListingPage{Listings: views, Meta: meta}

	if err := s.cache.Set(ctx, cacheKey, page, listCacheTTL); err != nil {
		log.Warn().Err(err).Msg("listing page cache write failed")
	}
	return &page, nil
}

func (s *DefaultService) Get(ctx context.Context, u *domain.User, id string) (*ListingView, error) {
	listing, err := s.getListing(ctx, id)
	if err != nil {
		return nil, err
	}
	if !permission.CanAccessListing(actorOf(u), listing.UserID) {
		return nil, errors.Forbidden("You do not have access to this listing", nil)
	}
	return toListingView(listing), nil
}

func (s *DefaultService) UpdateDetails(ctx context.Context, u *domain.User, id string, address, title *string) (*ListingView, error) {
	listing, err := s.getListing(ctx, id)
	if err != nil {
		return nil, err
	}
	if !permission.CanModifyListing(actorOf(u), listing.UserID) {
		return nil, errors.Forbidden("You cannot modify this listing", nil)
	}

	fields := map[string]any{}
	if address != nil {
		trimmed := strings.TrimSpace(*address)
		if trimmed == "" {
			return nil, errors.BadRequest("Address cannot be empty", nil)
		}
		fields["address"] = trimmed
		fields["sanitized_address"] = domain.SanitizeAddress(trimmed)
	}
	if title != nil {
		fields["title"] = strings.TrimSpace(*title)
	}
	if len(fields) == 0 {
		return nil, errors.BadRequest("Nothing to update", nil)
	}
	fields["updated_at"] = time.Now().UTC()

	if err := s.repository.UpdateDetails(ctx, id, fields); err != nil {
		return nil, err
	}
	s.invalidate(ctx, listing.UserID)

	updated, err := s.getListing(ctx, id)
	if err != nil {
		return nil, err
	}
	return toListingView(updated), nil
}

func (s *DefaultService) Reorder(ctx context.Context, u *domain.User, id string, photoIDs []string) (*ListingView, error) {
	listing, err := s.getListing(ctx, id)
	if err != nil {
		return nil, err
	}
	if !permission.CanReorderListing(actorOf(u), listing.UserID, listing.Status) {
		return nil, errors.Forbidden("You cannot reorder photos for this listing", nil)
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

	if err := s.repository.ReorderPhotos(ctx, id, photoIDs); err != nil {
		return nil, err
	}
	s.invalidate(ctx, listing.UserID)

	updated, err := s.getListing(ctx, id)
	if err != nil {
		return nil, err
	}
	return toListingView(updated), nil
}

// Submit moves a DRAFT listing to SUBMITTED. The transition is a conditional
// update, so two concurrent submits produce exactly one winner.
func (s *DefaultService) Submit(ctx context.Context, u *domain.User, id string) (*ListingView, error) {
	listing, err := s.getListing(ctx, id)
	if err != nil {
		return nil, err
	}

	actor := actorOf(u)
	canSubmit := (actor.ID == listing.UserID && permission.HasPermission(actor.Role, permission.ListingSubmit)) ||
		permission.IsAdmin(actor)
	if !canSubmit {
		return nil, errors.Forbidden("You cannot submit this listing", nil)
	}

	if listing.Status != domain.ListingDraft {
		return nil, errors.BadRequest("Only DRAFT listings can be submitted", nil)
	}
	if listing.ActivePhotoCount() == 0 {
		return nil, errors.BadRequest("Cannot submit a listing without photos", nil)
	}

	won, err := s.repository.UpdateStatusIf(ctx, id, []domain.ListingStatus{domain.ListingDraft}, domain.ListingSubmitted)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, errors.BadRequest("Listing has already been submitted", nil)
	}
	listing.Status = domain.ListingSubmitted

	s.invalidate(ctx, listing.UserID)
	s.notifier.ListingSubmitted(ctx, s.event(listing, u))

	return toListingView(listing), nil
}

// Approve moves a listing to APPROVED. Re-approving is rejected; the
// conditional update makes concurrent approvals race-safe.
func (s *DefaultService) Approve(ctx context.Context, u *domain.User, id string) (*ListingView, error) {
	listing, err := s.getListing(ctx, id)
	if err != nil {
		return nil, err
	}
	if !permission.CanApproveListing(actorOf(u)) {
		return nil, errors.Forbidden("You are not allowed to approve listings", nil)
	}

	won, err := s.repository.UpdateStatusIf(ctx, id,
		[]domain.ListingStatus{domain.ListingDraft, domain.ListingSubmitted}, domain.ListingApproved)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, errors.BadRequest("Listing is already approved", nil)
	}
	listing.Status = domain.ListingApproved

	s.invalidate(ctx, listing.UserID)
	s.notifier.ListingApproved(ctx, s.event(listing, u))

	return toListingView(listing), nil
}

func (s *DefaultService) Delete(ctx context.Context, u *domain.User, id string) error {
	listing, err := s.getListing(ctx, id)
	if err != nil {
		return err
	}
	if !permission.CanDeleteListing(actorOf(u), listing.UserID) {
		return errors.Forbidden("You cannot delete this listing", nil)
	}

	if err := s.repository.Delete(ctx, id); err != nil {
		return err
	}
	s.deleteBlobs(ctx, listing)
	s.invalidate(ctx, listing.UserID)
	return nil
}

// deleteBlobs removes the stored files of all photos. The records are already
// gone at this point, so failures only leak storage and are just logged.
func (s *DefaultService) deleteBlobs(ctx context.Context, listing *domain.Listing) {
	for _, p := range listing.Photos {
		if err := s.blobs.Delete(ctx, storage.OriginalPath(listing.ID, p.ID, p.Ext)); err != nil {
			log.Warn().Err(err).Str("photo_id", p.ID).Msg("original blob delete failed")
		}
		if err := s.blobs.Delete(ctx, storage.ThumbPath(listing.ID, p.ID)); err != nil {
			log.Warn().Err(err).Str("photo_id", p.ID).Msg("thumbnail blob delete failed")
		}
	}
}

// extFor derives the stored extension from the upload's filename, falling back
// to the declared content type.
func extFor(originalName, mime string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(originalName)), ".")
	if ext == "jpeg" {
		ext = "jpg"
	}
	if ext != "" {
		return ext
	}
	switch mime {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	}
	return "bin"
}

// AddPhoto stores the original bytes first, then the record; if the record
// cannot be written the blob is removed again so the two stay in step.
// Thumbnail generation runs in the background and is best-effort.
func (s *DefaultService) AddPhoto(ctx context.Context, u *domain.User, listingID string, data []byte, originalName, mime string) (*PhotoView, error) {
	listing, err := s.getListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !permission.CanModifyListing(actorOf(u), listing.UserID) {
		return nil, errors.Forbidden("You cannot modify this listing", nil)
	}

	if len(data) == 0 {
		return nil, errors.BadRequest("Photo file is empty", nil)
	}
	if !strings.HasPrefix(mime, "image/") {
		return nil, errors.BadRequest("Only image uploads are accepted", nil)
	}

	photoID := uuid.NewString()
	ext := extFor(originalName, mime)
	originalPath := storage.OriginalPath(listingID, photoID, ext)

	if err := s.blobs.Upload(ctx, originalPath, data); err != nil {
		return nil, errors.Internal(fmt.Errorf("store photo: %w", err))
	}

	photo := &domain.Photo{
		ID:           photoID,
		ListingID:    listingID,
		OriginalName: originalName,
		Filename:     photoID + "." + ext,
		Mime:         mime,
		Ext:          ext,
	}
	if err := s.repository.CreatePhoto(ctx, photo); err != nil {
		if cleanupErr := s.blobs.Delete(ctx, originalPath); cleanupErr != nil {
			log.Warn().Err(cleanupErr).Str("path", originalPath).Msg("orphan blob cleanup failed")
		}
		return nil, err
	}

	s.invalidate(ctx, listing.UserID)

	thumbPath := storage.ThumbPath(listingID, photoID)
	s.tasks.Submit(func(taskCtx context.Context) error {
		thumb, err := thumbnail.Generate(data)
		if err != nil {
			// reads fall back to the original, so a failed thumbnail is not fatal
			return fmt.Errorf("thumbnail %s: %w", photoID, err)
		}
		return s.blobs.Upload(taskCtx, thumbPath, thumb)
	})

	view := toPhotoView(photo)
	return &view, nil
}

// GetPhotoFile returns the photo bytes and content type. When a thumbnail is
// requested but missing, the original is served instead.
func (s *DefaultService) GetPhotoFile(ctx context.Context, u *domain.User, listingID, photoID string, thumb bool) ([]byte, string, error) {
	listing, err := s.getListing(ctx, listingID)
	if err != nil {
		return nil, "", err
	}
	if !permission.CanAccessListing(actorOf(u), listing.UserID) {
		return nil, "", errors.Forbidden("You do not have access to this listing", nil)
	}

	photo := listing.FindPhoto(photoID)
	if photo == nil {
		return nil, "", errors.NotFound("Photo not found", nil)
	}

	if thumb {
		if data, err := s.blobs.Download(ctx, storage.ThumbPath(listingID, photoID)); err == nil {
			return data, "image/jpeg", nil
		}
	}

	data, err := s.blobs.Download(ctx, storage.OriginalPath(listingID, photoID, photo.Ext))
	if err != nil {
		return nil, "", errors.NotFound("Photo file not found", err)
	}
	return data, photo.Mime, nil
}

func (s *DefaultService) TogglePhotoExcluded(ctx context.Context, u *domain.User, listingID, photoID string) (*PhotoView, error) {
	listing, err := s.getListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !permission.CanModifyListing(actorOf(u), listing.UserID) {
		return nil, errors.Forbidden("You cannot modify this listing", nil)
	}
	if !listing.HasPhoto(photoID) {
		return nil, errors.NotFound("Photo not found", nil)
	}

	photo, err := s.repository.TogglePhotoExcluded(ctx, listingID, photoID)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, listing.UserID)

	view := toPhotoView(photo)
	return &view, nil
}

func (s *DefaultService) DeletePhoto(ctx context.Context, u *domain.User, listingID, photoID string) error {
	listing, err := s.getListing(ctx, listingID)
	if err != nil {
		return err
	}
	if !permission.CanModifyListing(actorOf(u), listing.UserID) {
		return errors.Forbidden("You cannot modify this listing", nil)
	}

	photo := listing.FindPhoto(photoID)
	if photo == nil {
		return errors.NotFound("Photo not found", nil)
	}

	if err := s.repository.DeletePhoto(ctx, listingID, photoID); err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return errors.NotFound("Photo not found", err)
		}
		return err
	}

	if err := s.blobs.Delete(ctx, storage.OriginalPath(listingID, photoID, photo.Ext)); err != nil {
		log.Warn().Err(err).Str("photo_id", photoID).Msg("original blob delete failed")
	}
	if err := s.blobs.Delete(ctx, storage.ThumbPath(listingID, photoID)); err != nil {
		log.Warn().Err(err).Str("photo_id", photoID).Msg("thumbnail blob delete failed")
	}

	s.invalidate(ctx, listing.UserID)
	return nil
}

// CleanupOld removes listings untouched for RetentionDays. One failing listing
// is recorded and skipped; the sweep always runs to completion.
func (s *DefaultService) CleanupOld(ctx context.Context) (*CleanupResult, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -RetentionDays)
	stale, err := s.repository.ListOlderThan(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	result := &CleanupResult{DeletedIDs: []string{}, Errors: []string{}}
	for i := range stale {
		listing := &stale[i]
		if err := s.repository.Delete(ctx, listing.ID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", listing.ID, err))
			continue
		}
		s.deleteBlobs(ctx, listing)
		s.invalidate(ctx, listing.UserID)
		result.DeletedCount++
		result.DeletedIDs = append(result.DeletedIDs, listing.ID)
	}

	log.Info().Int("deleted", result.DeletedCount).Int("errors", len(result.Errors)).Msg("retention sweep finished")
	return result, nil
}
