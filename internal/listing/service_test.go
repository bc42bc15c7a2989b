package listing

import (
	"bytes"
	"context"
	defError "errors"
	"image"
	"image/jpeg"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"photo-listing-portal/internal/cache"
	"photo-listing-portal/internal/domain"
	"photo-listing-portal/internal/errors"
	"photo-listing-portal/internal/notify"
	"photo-listing-portal/internal/storage"
	"photo-listing-portal/internal/worker"
)

// in-memory repository fake
type fakeRepo struct {
	listings        map[string]*domain.Listing
	failCreatePhoto bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{listings: map[string]*domain.Listing{}}
}

func (r *fakeRepo) sortPhotos(l *domain.Listing) {
	sort.SliceStable(l.Photos, func(i, j int) bool {
		if l.Photos[i].SortOrder != l.Photos[j].SortOrder {
			return l.Photos[i].SortOrder < l.Photos[j].SortOrder
		}
		return l.Photos[i].CreatedAt.Before(l.Photos[j].CreatedAt)
	})
}

func (r *fakeRepo) Create(_ context.Context, l *domain.Listing) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.CreatedAt = time.Now().UTC()
	l.UpdatedAt = l.CreatedAt
	r.listings[l.ID] = l
	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, id string) (*domain.Listing, error) {
	l, ok := r.listings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	r.sortPhotos(l)
	copied := *l
	copied.Photos = append([]domain.Photo{}, l.Photos...)
	return &copied, nil
}

func (r *fakeRepo) List(_ context.Context, filter ListFilter) ([]domain.Listing, ListMeta, error) {
	var result []domain.Listing
	for _, l := range r.listings {
		if filter.UserID != "" && l.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		result = append(result, *l)
	}
	return result, ListMeta{Total: int64(len(result)), Limit: filter.Limit, Offset: filter.Offset}, nil
}

func (r *fakeRepo) UpdateDetails(_ context.Context, id string, fields map[string]any) error {
	l, ok := r.listings[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if v, ok := fields["address"]; ok {
		l.Address = v.(string)
	}
	if v, ok := fields["sanitized_address"]; ok {
		l.SanitizedAddress = v.(string)
	}
	if v, ok := fields["title"]; ok {
		l.Title = v.(string)
	}
	return nil
}

func (r *fakeRepo) UpdateStatusIf(_ context.Context, id string, from []domain.ListingStatus, to domain.ListingStatus) (bool, error) {
	l, ok := r.listings[id]
	if !ok {
		return false, nil
	}
	for _, status := range from {
		if l.Status == status {
			l.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.listings[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.listings, id)
	return nil
}

func (r *fakeRepo) ListOlderThan(_ context.Context, cutoff time.Time) ([]domain.Listing, error) {
	var result []domain.Listing
	for _, l := range r.listings {
		if l.UpdatedAt.Before(cutoff) {
			result = append(result, *l)
		}
	}
	return result, nil
}

func (r *fakeRepo) CreatePhoto(_ context.Context, p *domain.Photo) error {
	if r.failCreatePhoto {
		return defError.New("insert failed")
	}
	l, ok := r.listings[p.ListingID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = time.Now().UTC()
	next := 0
	for _, existing := range l.Photos {
		if existing.SortOrder >= next {
			next = existing.SortOrder + 1
		}
	}
	p.SortOrder = next
	l.Photos = append(l.Photos, *p)
	return nil
}

func (r *fakeRepo) FindPhoto(_ context.Context, photoID string) (*domain.Photo, error) {
	for _, l := range r.listings {
		if p := l.FindPhoto(photoID); p != nil {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) TogglePhotoExcluded(_ context.Context, listingID, photoID string) (*domain.Photo, error) {
	l, ok := r.listings[listingID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	p := l.FindPhoto(photoID)
	if p == nil {
		return nil, gorm.ErrRecordNotFound
	}
	p.Excluded = !p.Excluded
	return p, nil
}

func (r *fakeRepo) DeletePhoto(_ context.Context, listingID, photoID string) error {
	l, ok := r.listings[listingID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range l.Photos {
		if l.Photos[i].ID == photoID {
			l.Photos = append(l.Photos[:i], l.Photos[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeRepo) ReorderPhotos(_ context.Context, listingID string, orderedIDs []string) error {
	l, ok := r.listings[listingID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	position := make(map[string]int, len(orderedIDs))
	for i, id := range orderedIDs {
		position[id] = i
	}
	next := len(orderedIDs)
	r.sortPhotos(l)
	for i := range l.Photos {
		if pos, listed := position[l.Photos[i].ID]; listed {
			l.Photos[i].SortOrder = pos
		} else {
			l.Photos[i].SortOrder = next
			next++
		}
	}
	return nil
}

// in-memory blob store fake
type fakeBlobs struct {
	files map[string][]byte
}

func newFakeBlobs() *fakeBlobs { return &fakeBlobs{files: map[string][]byte{}} }

func (b *fakeBlobs) Upload(_ context.Context, path string, data []byte) error {
	b.files[path] = data
	return nil
}

func (b *fakeBlobs) Download(_ context.Context, path string) ([]byte, error) {
	data, ok := b.files[path]
	if !ok {
		return nil, defError.New("blob not found")
	}
	return data, nil
}

func (b *fakeBlobs) Open(_ context.Context, path string) (io.ReadCloser, error) {
	data, err := b.Download(context.Background(), path)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *fakeBlobs) Delete(_ context.Context, path string) error {
	delete(b.files, path)
	return nil
}

// notifier that records which events fired
type recordingNotifier struct {
	calls []string
	last  notify.Event
}

func (n *recordingNotifier) record(name string, ev notify.Event) {
	n.calls = append(n.calls, name)
	n.last = ev
}

func (n *recordingNotifier) ListingCreated(_ context.Context, ev notify.Event) {
	n.record("created", ev)
}
func (n *recordingNotifier) ListingSubmitted(_ context.Context, ev notify.Event) {
	n.record("submitted", ev)
}
func (n *recordingNotifier) ListingApproved(_ context.Context, ev notify.Event) {
	n.record("approved", ev)
}
func (n *recordingNotifier) OrderProposed(_ context.Context, ev notify.Event) {
	n.record("proposed", ev)
}
func (n *recordingNotifier) SubmissionApproved(_ context.Context, ev notify.Event, _ domain.Role) {
	n.record("submission_approved", ev)
}
func (n *recordingNotifier) ChangesRequested(_ context.Context, ev notify.Event, _ domain.Role) {
	n.record("changes_requested", ev)
}

// task runner that executes submitted tasks inline
type syncRunner struct{}

func (syncRunner) Submit(t worker.Task) {
	_ = t(context.Background())
}

// users keyed by id
type fakeUsers struct {
	users map[string]*domain.User
}

func (f *fakeUsers) GetUserByID(id string) (*domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

type fixture struct {
	repo     *fakeRepo
	blobs    *fakeBlobs
	notifier *recordingNotifier
	service  Service

	advisor  *domain.User
	reviewer *domain.User
	admin    *domain.User
}

func newFixture() *fixture {
	f := &fixture{
		repo:     newFakeRepo(),
		blobs:    newFakeBlobs(),
		notifier: &recordingNotifier{},
		advisor:  &domain.User{ID: "advisor-1", Name: "Alice Advisor", Email: "alice@example.com", Role: domain.RoleAdvisor, IsActive: true},
		reviewer: &domain.User{ID: "listings-1", Name: "Lee Listings", Email: "lee@example.com", Role: domain.RoleListings, IsActive: true},
		admin:    &domain.User{ID: "admin-1", Name: "Ada Admin", Email: "ada@example.com", Role: domain.RoleAdmin, IsActive: true},
	}
	users := &fakeUsers{users: map[string]*domain.User{
		f.advisor.ID:  f.advisor,
		f.reviewer.ID: f.reviewer,
		f.admin.ID:    f.admin,
	}}
	f.service = NewService(f.repo, users, f.blobs, f.notifier, (*cache.Cache)(nil), syncRunner{})
	return f
}

func (f *fixture) seedListing(t *testing.T, owner *domain.User, status domain.ListingStatus, photoCount int) *domain.Listing {
	t.Helper()
	l := &domain.Listing{
		ID:               uuid.NewString(),
		Address:          "12 Sample Street",
		SanitizedAddress: "12_Sample_Street",
		UserID:           owner.ID,
		Status:           status,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
	for i := 0; i < photoCount; i++ {
		p := domain.Photo{
			ID:        uuid.NewString(),
			ListingID: l.ID,
			Mime:      "image/jpeg",
			Ext:       "jpg",
			SortOrder: i,
			CreatedAt: time.Now().UTC(),
		}
		l.Photos = append(l.Photos, p)
		f.blobs.files[storage.OriginalPath(l.ID, p.ID, p.Ext)] = []byte("photo-bytes-" + p.ID)
	}
	f.repo.listings[l.ID] = l
	return l
}

func apiStatus(t *testing.T, err error) int {
	t.Helper()
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	return apiErr.Status
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 600, 400))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestCreate_StartsAsDraft(t *testing.T) {
	f := newFixture()

	view, err := f.service.Create(context.Background(), f.advisor, "  45 Ocean View Rd.  ", "Sea view")

	require.NoError(t, err)
	assert.Equal(t, domain.ListingDraft, view.Status)
	assert.Equal(t, "45 Ocean View Rd.", view.Address)
	assert.Equal(t, "45_Ocean_View_Rd", view.SanitizedAddress)
	assert.Equal(t, f.advisor.ID, view.UserID)
	assert.Equal(t, []string{"created"}, f.notifier.calls)
}

func TestCreate_EmptyAddress(t *testing.T) {
	f := newFixture()

	_, err := f.service.Create(context.Background(), f.advisor, "   ", "")

	assert.Equal(t, 400, apiStatus(t, err))
	assert.Empty(t, f.notifier.calls)
}

func TestSubmit_HappyPath(t *testing.T) {
	f := newFixture()
	l := f.seedListing(t, f.advisor, domain.ListingDraft, 2)

	view, err := f.service.Submit(context.Background(), f.advisor, l.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.ListingSubmitted, view.Status)
	assert.Equal(t, []string{"submitted"}, f.notifier.calls)
	assert.Equal(t, f.advisor.Email, f.notifier.last.OwnerEmail)
}

func TestSubmit_NoPhotos(t *testing.T) {
	f := newFixture()
	l := f.seedListing(t, f.advisor, domain.ListingDraft, 0)

	_, err := f.service.Submit(context.Background(), f.advisor, l.ID)

	assert.Equal(t, 400, apiStatus(t, err))
}

func TestSubmit_ExcludedPhotosDoNotCount(t *testing.T) {
	f := newFixture()
	l := f.seedListing(t, f.advisor, domain.ListingDraft, 1)
	f.repo.listings[l.ID].Photos[0].Excluded = true

	_, err := f.service.Submit(context.Background(), f.advisor, l.ID)

	assert.Equal(t, 400, apiStatus(t, err))
}

func TestSubmit_NonOwnerForbidden(t *testing.T) {
	f := newFixture()
	l := f.seedListing(t, f.advisor, domain.ListingDraft, 1)

	_, err := f.service.Submit(context.Background(), f.reviewer, l.ID)

	assert.Equal(t, 403, apiStatus(t, err))
}

func TestSubmit_SecondSubmitLoses(t *testing.T) {
	f := newFixture()
	l := f.seedListing(t, f.advisor, domain.ListingDraft, 1)

	_, err := f.service.Submit(context.Background(), f.advisor, l.ID)
	require.NoError(t, err)

	_, err = f.service.Submit(context.Background(), f.advisor, l.ID)
	assert.Equal(t, 400, apiStatus(t, err))
	// only the winning submit notified
	assert.Equal(t, []string{"submitted"}, f.notifier.calls)
}

func TestApprove_AdvisorForbidden(t *testing.T) {
	f := newFixture()
	l := f.seedListing(t, f.advisor, domain.ListingSubmitted, 1)

	_, err := f.service.Approve(context.Background(), f.advisor, l.ID)

	assert.Equal(t, 403, apiStatus(t, err))
}

func TestApprove_NotifiesOwner(t *testing.T) {
	f := newFixture()
	l := f.seedListing(t, f.advisor, domain.ListingSubmitted, 1)

	view, err := f.service.Approve(context.Background(), f.reviewer, l.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.ListingApproved, view.Status)
	assert.Equal(t, []string{"approved"}, f.notifier.calls)
	assert.Equal(t, f.advisor.Email, f.notifier.last.OwnerEmail)
}

func TestApprove_ReapproveRejectedWithoutRenotify(t *testing.T) {
	f := newFixture()
	l := f.seedListing(t, f.advisor, domain.ListingSubmitted, 1)

	_, err := f.service.Approve(context.Background(), f.reviewer, l.ID)
	require.NoError(t, err)

	_, err = f.service.Approve(context.Background(), f.reviewer, l.ID)
	assert.Equal(t, 400, apiStatus(t, err))
	assert.Equal(t, []string{"approved"}, f.notifier.calls)
}

func TestReorder_FullPermutation(t *testing.T) {
	f := newFixture()
	l := f.seedListing(t, f.advisor, domain.ListingDraft, 3)
	ids := f.repo.listings[l.ID].PhotoIDs()
	reversed := []string{ids[2], ids[1], ids[0]}

	view, err := f.service.Reorder(context.Background(), f.advisor, l.ID, reversed)

	require.NoError(t, err)
	assert.Equal(t, reversed, view.PhotoIDs)
}

func TestReorder_PartialListKeepsRemainderOrder(t *testing.T) {
	f := newFixture()
	l := f.seedListing(t, f.advisor, domain.ListingDraft, 4)
	ids := f.repo.listings[l.ID].PhotoIDs()

	view, err := f.service.Reorder(context.Background(), f.advisor, l.ID, []string{ids[3], ids[1]})

	require.NoError(t, err)
	assert.Equal(t, []string{ids[3], ids[1], ids[0], ids[2]}, view.PhotoIDs)
}

func TestReorder_ForeignPhotoRejected(t *testing.T) {
	f := newFixture()
	l := f.seedListing(t, f.advisor, domain.ListingDraft, 1)

	_, err := f.service.Reorder(context.Background(), f.advisor, l.ID, []string{"not-a-photo"})

	assert.Equal(t, 400, apiStatus(t, err))
	assert.Contains(t, err.Error(), "not-a-photo")
}

func TestReorder_OwnerLosesRightAfterSubmit(t *testing.T) {
	f := newFixture()
	l := f.seedListing(t, f.advisor, domain.ListingSubmitted, 2)
	ids := f.repo.listings[l.ID].PhotoIDs()

	_, err := f.service.Reorder(context.Background(), f.advisor, l.ID, []string{ids[1], ids[0]})
	assert.Equal(t, 403, apiStatus(t, err))

	// the listings team keeps the right on submitted listings
	view, err := f.service.Reorder(context.Background(), f.reviewer, l.ID, []string{ids[1], ids[0]})
	require.NoError(t, err)
	assert.Equal(t, []string{ids[1], ids[0]}, view.PhotoIDs)
}

func TestReorder_DoesNotTouchExcludedFlags(t *testing.T) {
	f := newFixture()
	l := f.seedListing(t, f.advisor, domain.ListingDraft, 2)
	f.repo.listings[l.ID].Photos[1].Excluded = true
	ids := f.repo.listings[l.ID].PhotoIDs()

	view, err := f.service.Reorder(context.Background(), f.advisor, l.ID, []string{ids[1], ids[0]})

	require.NoError(t, err)
	assert.True(t, view.Photos[0].Excluded)
	assert.False(t, view.Photos[1].Excluded)
}

func TestAddPhoto_StoresBlobAndRecordAndThumbnail(t *testing.T) {
	f := newFixture()
	l := f.seedListing(t, f.advisor, domain.ListingDraft, 0)

	view, err := f.service.AddPhoto(context.Background(), f.advisor, l.ID, testJPEG(t), "kitchen.JPEG", "image/jpeg")

	require.NoError(t, err)
	assert.Equal(t, "jpg", view.Ext)
	assert.Equal(t, 0, view.SortOrder)
	assert.Contains(t, f.blobs.files, storage.OriginalPath(l.ID, view.ID, "jpg"))
	// the sync runner generated the thumbnail inline
	assert.Contains(t, f.blobs.files, storage.ThumbPath(l.ID, view.ID))
}

func TestAddPhoto_SequentialSortOrders(t *testing.T) {
	f := newFixture()
	l := f.seedListing(t, f.advisor, domain.ListingDraft, 0)

	first, err := f.service.AddPhoto(context.Background(), f.advisor, l.ID, testJPEG(t), "a.jpg", "image/jpeg")
	require.NoError(t, err)
	second, err := f.service.AddPhoto(context.Background(), f.advisor, l.ID, testJPEG(t), "b.jpg", "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, 0, first.SortOrder)
	assert.Equal(t, 1, second.SortOrder)
}

func TestAddPhoto_NonImageRejected(t *testing.T) {
	f := newFixture()
	l := f.seedListing(t, f.advisor, domain.ListingDraft, 0)

	_, err := f.service.AddPhoto(context.Background(), f.advisor, l.ID, []byte("%PDF-1.4"), "doc.pdf", "application/pdf")

	assert.Equal(t, 400, apiStatus(t, err))
	assert.Empty(t, f.blobs.files)
}

func TestAddPhoto_RecordFailureCleansUpBlob(t *testing.T) {
	f := newFixture()
	l := f.seedListing(t, f.advisor, domain.ListingDraft, 0)
	f.repo.failCreatePhoto = true

	_, err := f.service.AddPhoto(context.Background(), f.advisor, l.ID, testJPEG(t), "a.jpg", "image/jpeg")

	assert.Error(t, err)
	assert.Empty(t, f.blobs.files)
}

func TestGetPhotoFile_ThumbFallsBackToOriginal(t *testing.T) {
	f := newFixture()
	l := f.seedListing(t, f.advisor, domain.ListingDraft, 1)
	photoID := l.Photos[0].ID

	// no thumbnail was ever generated for the seeded photo
	data, contentType, err := f.service.GetPhotoFile(context.Background(), f.advisor, l.ID, photoID, true)

	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", contentType)
	assert.Equal(t, []byte("photo-bytes-"+photoID), data)
}

func TestGetPhotoFile_ForeignAdvisorForbidden(t *testing.T) {
	f := newFixture()
	other := &domain.User{ID: "advisor-2", Email: "other@example.com", Role: domain.RoleAdvisor}
	l := f.seedListing(t, f.advisor, domain.ListingDraft, 1)

	_, _, err := f.service.GetPhotoFile(context.Background(), other, l.ID, l.Photos[0].ID, false)

	assert.Equal(t, 403, apiStatus(t, err))
}

func TestTogglePhotoExcluded_Flips(t *testing.T) {
	f := newFixture()
	l := f.seedListing(t, f.advisor, domain.ListingDraft, 1)
	photoID := l.Photos[0].ID

	view, err := f.service.TogglePhotoExcluded(context.Background(), f.advisor, l.ID, photoID)
	require.NoError(t, err)
	assert.True(t, view.Excluded)

	view, err = f.service.TogglePhotoExcluded(context.Background(), f.advisor, l.ID, photoID)
	require.NoError(t, err)
	assert.False(t, view.Excluded)
}

func TestDeletePhoto_RemovesBlobs(t *testing.T) {
	f := newFixture()
	l := f.seedListing(t, f.advisor, domain.ListingDraft, 1)
	photoID := l.Photos[0].ID

	err := f.service.DeletePhoto(context.Background(), f.advisor, l.ID, photoID)

	require.NoError(t, err)
	assert.NotContains(t, f.blobs.files, storage.OriginalPath(l.ID, photoID, "jpg"))
}

func TestDelete_NonOwnerListingsTeamForbidden(t *testing.T) {
	f := newFixture()
	l := f.seedListing(t, f.advisor, domain.ListingDraft, 1)

	err := f.service.Delete(context.Background(), f.reviewer, l.ID)
	assert.Equal(t, 403, apiStatus(t, err))

	// admins hold delete_all
	err = f.service.Delete(context.Background(), f.admin, l.ID)
	assert.NoError(t, err)
	assert.Empty(t, f.blobs.files)
}

func TestList_AllRequiresReadAll(t *testing.T) {
	f := newFixture()
	f.seedListing(t, f.advisor, domain.ListingDraft, 0)
	f.seedListing(t, f.reviewer, domain.ListingDraft, 0)

	_, err := f.service.List(context.Background(), f.advisor, ListOptions{All: true})
	assert.Equal(t, 403, apiStatus(t, err))

	page, err := f.service.List(context.Background(), f.advisor, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, page.Listings, 1)

	page, err = f.service.List(context.Background(), f.reviewer, ListOptions{All: true})
	require.NoError(t, err)
	assert.Len(t, page.Listings, 2)
}

func TestCleanupOld_SweepsOnlyStaleListings(t *testing.T) {
	f := newFixture()
	stale := f.seedListing(t, f.advisor, domain.ListingDraft, 1)
	f.repo.listings[stale.ID].UpdatedAt = time.Now().UTC().AddDate(0, 0, -(RetentionDays + 1))
	fresh := f.seedListing(t, f.advisor, domain.ListingDraft, 1)

	result, err := f.service.CleanupOld(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.DeletedCount)
	assert.Equal(t, []string{stale.ID}, result.DeletedIDs)
	assert.Empty(t, result.Errors)
	assert.NotContains(t, f.repo.listings, stale.ID)
	assert.Contains(t, f.repo.listings, fresh.ID)
	// the stale listing's files are gone, the fresh one's remain
	assert.NotContains(t, f.blobs.files, storage.OriginalPath(stale.ID, stale.Photos[0].ID, "jpg"))
	assert.Contains(t, f.blobs.files, storage.OriginalPath(fresh.ID, fresh.Photos[0].ID, "jpg"))
}
