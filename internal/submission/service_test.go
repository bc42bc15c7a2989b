package submission

import (
	"context"
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
)

// in-memory submission repository fake
type fakeSubRepo struct {
	subs map[string]*domain.Submission
}

func newFakeSubRepo() *fakeSubRepo {
	return &fakeSubRepo{subs: map[string]*domain.Submission{}}
}

func (r *fakeSubRepo) Create(_ context.Context, sub *domain.Submission) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.SubmittedAt = now
	r.subs[sub.ID] = sub
	return nil
}

func (r *fakeSubRepo) FindByID(_ context.Context, id string) (*domain.Submission, error) {
	sub, ok := r.subs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *sub
	return &copied, nil
}

func (r *fakeSubRepo) Latest(_ context.Context, listingID string, statuses []domain.SubmissionStatus) (*domain.Submission, error) {
	var latest *domain.Submission
	for _, sub := range r.subs {
		if sub.ListingID != listingID {
			continue
		}
		if len(statuses) > 0 {
			match := false
			for _, status := range statuses {
				if sub.Status == status {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		if latest == nil || sub.CreatedAt.After(latest.CreatedAt) {
			latest = sub
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *latest
	return &copied, nil
}

func (r *fakeSubRepo) ResolveIf(_ context.Context, id string, from, to domain.SubmissionStatus, reviewerID string, note *string) (bool, error) {
	sub, ok := r.subs[id]
	if !ok || sub.Status != from {
		return false, nil
	}
	now := time.Now().UTC()
	sub.Status = to
	sub.ApprovedByUserID = &reviewerID
	sub.ApprovedAt = &now
	if note != nil {
		sub.Note = note
	}
	return true, nil
}

// listing provider fake
type fakeListings struct {
	listings map[string]*domain.Listing
}

func (f *fakeListings) FindByID(_ context.Context, id string) (*domain.Listing, error) {
	l, ok := f.listings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return l, nil
}

func (f *fakeListings) UpdateStatusIf(_ context.Context, id string, from []domain.ListingStatus, to domain.ListingStatus) (bool, error) {
	l, ok := f.listings[id]
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

// notifier that records which events fired, with the initiator role
type recordingNotifier struct {
	calls     []string
	last      notify.Event
	initiator domain.Role
}

func (n *recordingNotifier) record(name string, ev notify.Event) {
	n.calls = append(n.calls, name)
	n.last = ev
}

func (n *recordingNotifier) ListingCreated(_ context.Context, ev notify.Event)   { n.record("created", ev) }
func (n *recordingNotifier) ListingSubmitted(_ context.Context, ev notify.Event) { n.record("submitted", ev) }
func (n *recordingNotifier) ListingApproved(_ context.Context, ev notify.Event)  { n.record("approved", ev) }
func (n *recordingNotifier) OrderProposed(_ context.Context, ev notify.Event)    { n.record("proposed", ev) }
func (n *recordingNotifier) SubmissionApproved(_ context.Context, ev notify.Event, initiator domain.Role) {
	n.record("submission_approved", ev)
	n.initiator = initiator
}
func (n *recordingNotifier) ChangesRequested(_ context.Context, ev notify.Event, initiator domain.Role) {
	n.record("changes_requested", ev)
	n.initiator = initiator
}

type fixture struct {
	repo     *fakeSubRepo
	listings *fakeListings
	notifier *recordingNotifier
	service  Service

	advisor  *domain.User
	reviewer *domain.User
	admin    *domain.User
	listing  *domain.Listing
}

func newFixture() *fixture {
	f := &fixture{
		repo:     newFakeSubRepo(),
		notifier: &recordingNotifier{},
		advisor:  &domain.User{ID: "advisor-1", Name: "Alice", Email: "alice@example.com", Role: domain.RoleAdvisor, IsActive: true},
		reviewer: &domain.User{ID: "listings-1", Name: "Lee", Email: "lee@example.com", Role: domain.RoleListings, IsActive: true},
		admin:    &domain.User{ID: "admin-1", Name: "Ada", Email: "ada@example.com", Role: domain.RoleAdmin, IsActive: true},
	}
	f.listing = &domain.Listing{
		ID:      "l1",
		Address: "12 Sample Street",
		UserID:  f.advisor.ID,
		Status:  domain.ListingSubmitted,
		Photos: []domain.Photo{
			{ID: "p1", ListingID: "l1"},
			{ID: "p2", ListingID: "l1"},
			{ID: "p3", ListingID: "l1"},
		},
	}
	f.listings = &fakeListings{listings: map[string]*domain.Listing{"l1": f.listing}}
	users := &fakeUsers{users: map[string]*domain.User{
		f.advisor.ID:  f.advisor,
		f.reviewer.ID: f.reviewer,
		f.admin.ID:    f.admin,
	}}
	f.service = NewService(f.repo, f.listings, users, f.notifier, (*cache.Cache)(nil))
	return f
}

func apiStatus(t *testing.T, err error) int {
	t.Helper()
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	return apiErr.Status
}

func (f *fixture) propose(t *testing.T) *SubmissionView {
	t.Helper()
	view, err := f.service.Propose(context.Background(), f.reviewer, "l1", []string{"p2", "p1", "p3"}, nil)
	require.NoError(t, err)
	return view
}

func TestPropose_Success(t *testing.T) {
	f := newFixture()
	note := "led with the garden shot"

	view, err := f.service.Propose(context.Background(), f.reviewer, "l1", []string{"p3", "p1", "p2"}, &note)

	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionSubmitted, view.Status)
	assert.Equal(t, domain.RoleListings, view.InitiatorRole)
	assert.Equal(t, domain.RoleAdvisor, view.ApproverRole)
	assert.Equal(t, []string{"p3", "p1", "p2"}, view.PhotoIDs)
	assert.Equal(t, f.reviewer.ID, view.SubmittedBy)
	// the owner hears about the proposal
	assert.Equal(t, []string{"proposed"}, f.notifier.calls)
	assert.Equal(t, f.advisor.Email, f.notifier.last.OwnerEmail)
	assert.Equal(t, note, f.notifier.last.Note)
}

func TestPropose_AdvisorForbidden(t *testing.T) {
	f := newFixture()

	_, err := f.service.Propose(context.Background(), f.advisor, "l1", []string{"p1"}, nil)

	assert.Equal(t, 403, apiStatus(t, err))
}

func TestPropose_ForeignPhotoNamed(t *testing.T) {
	f := newFixture()

	_, err := f.service.Propose(context.Background(), f.reviewer, "l1", []string{"p1", "intruder"}, nil)

	assert.Equal(t, 400, apiStatus(t, err))
	assert.Contains(t, err.Error(), "intruder")
}

func TestPropose_EmptyOrderRejected(t *testing.T) {
	f := newFixture()

	_, err := f.service.Propose(context.Background(), f.reviewer, "l1", nil, nil)

	assert.Equal(t, 400, apiStatus(t, err))
}

func TestApprove_ByMatchingRole(t *testing.T) {
	f := newFixture()
	proposed := f.propose(t)
	f.notifier.calls = nil

	// the round targets the advisor, so the advisor approves
	view, err := f.service.Approve(context.Background(), f.advisor, "l1", proposed.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionApproved, view.Status)
	require.NotNil(t, view.ApprovedBy)
	assert.Equal(t, f.advisor.ID, *view.ApprovedBy)
	assert.NotNil(t, view.ApprovedAt)
	assert.Equal(t, []string{"submission_approved"}, f.notifier.calls)
	assert.Equal(t, domain.RoleListings, f.notifier.initiator)
	// the advisor holds no listing:approve, the listing stays SUBMITTED
	assert.Equal(t, domain.ListingSubmitted, f.listing.Status)
}

func TestApprove_WrongRoleForbidden(t *testing.T) {
	f := newFixture()
	proposed := f.propose(t)

	// the round awaits the advisor; the proposing side cannot approve it
	_, err := f.service.Approve(context.Background(), f.reviewer, "l1", proposed.ID)

	assert.Equal(t, 403, apiStatus(t, err))
}

func TestApprove_AdminAlwaysAllowed(t *testing.T) {
	f := newFixture()
	proposed := f.propose(t)

	view, err := f.service.Approve(context.Background(), f.admin, "l1", proposed.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionApproved, view.Status)
	// the admin also holds listing:approve, so the listing moves along
	assert.Equal(t, domain.ListingApproved, f.listing.Status)
}

func TestApprove_SecondReviewLoses(t *testing.T) {
	f := newFixture()
	proposed := f.propose(t)
	f.notifier.calls = nil

	_, err := f.service.Approve(context.Background(), f.advisor, "l1", proposed.ID)
	require.NoError(t, err)

	_, err = f.service.Approve(context.Background(), f.advisor, "l1", proposed.ID)
	assert.Equal(t, 400, apiStatus(t, err))
	// the losing review never re-notifies
	assert.Equal(t, []string{"submission_approved"}, f.notifier.calls)
}

func TestApprove_ListingMismatch(t *testing.T) {
	f := newFixture()
	proposed := f.propose(t)

	_, err := f.service.Approve(context.Background(), f.advisor, "other-listing", proposed.ID)

	assert.Equal(t, 400, apiStatus(t, err))
}

func TestApprove_UnknownSubmission(t *testing.T) {
	f := newFixture()

	_, err := f.service.Approve(context.Background(), f.advisor, "l1", "ghost")

	assert.Equal(t, 404, apiStatus(t, err))
}

func TestRequestChanges_ResolvesRoundAndKeepsListing(t *testing.T) {
	f := newFixture()
	proposed := f.propose(t)
	f.notifier.calls = nil

	view, err := f.service.RequestChanges(context.Background(), f.advisor, "l1", proposed.ID, "swap the first two")

	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionChangesRequested, view.Status)
	assert.Equal(t, domain.ListingSubmitted, f.listing.Status)
	assert.Equal(t, []string{"changes_requested"}, f.notifier.calls)
	assert.Equal(t, "swap the first two", f.notifier.last.Note)
	assert.Equal(t, domain.RoleListings, f.notifier.initiator)
}

func TestRequestChanges_StoresReviewerNote(t *testing.T) {
	f := newFixture()
	proposalNote := "led with the garden shot"
	view, err := f.service.Propose(context.Background(), f.reviewer, "l1", []string{"p2", "p1", "p3"}, &proposalNote)
	require.NoError(t, err)

	_, err = f.service.RequestChanges(context.Background(), f.advisor, "l1", view.ID, "swap the first two")
	require.NoError(t, err)

	// the reviewer's feedback replaces the proposer's note on the record
	stored, err := f.repo.FindByID(context.Background(), view.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Note)
	assert.Equal(t, "swap the first two", *stored.Note)
}

func TestRequestChanges_AfterResolutionLoses(t *testing.T) {
	f := newFixture()
	proposed := f.propose(t)

	_, err := f.service.Approve(context.Background(), f.advisor, "l1", proposed.ID)
	require.NoError(t, err)

	_, err = f.service.RequestChanges(context.Background(), f.advisor, "l1", proposed.ID, "too late")
	assert.Equal(t, 400, apiStatus(t, err))
}

func TestLatest_ReturnsMostRecent(t *testing.T) {
	f := newFixture()
	first := f.propose(t)
	f.repo.subs[first.ID].CreatedAt = time.Now().UTC().Add(-time.Hour)
	second := f.propose(t)

	view, err := f.service.Latest(context.Background(), f.advisor, "l1")

	require.NoError(t, err)
	assert.Equal(t, second.ID, view.ID)
}

func TestLatest_NoSubmission(t *testing.T) {
	f := newFixture()

	_, err := f.service.Latest(context.Background(), f.advisor, "l1")

	assert.Equal(t, 404, apiStatus(t, err))
}

func TestLatest_ForeignAdvisorForbidden(t *testing.T) {
	f := newFixture()
	other := &domain.User{ID: "advisor-2", Email: "other@example.com", Role: domain.RoleAdvisor}

	_, err := f.service.Latest(context.Background(), other, "l1")

	assert.Equal(t, 403, apiStatus(t, err))
}
