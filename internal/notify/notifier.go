package notify

import (
	"context"

	"photo-listing-portal/internal/domain"

	"github.com/rs/zerolog/log"
)

// Event carries everything a notification template needs about a workflow
// transition. OwnerEmail is the listing owner; ActorName/ActorEmail identify
// who triggered the transition.
type Event struct {
	ListingID  string
	Address    string
	ActorName  string
	ActorEmail string
	OwnerEmail string
	PhotoCount int
	Note       string
}

// Notifier fires after a workflow transition has committed. Implementations
// must swallow and log delivery failures; a lost notification never rolls back
// or fails the transition that triggered it, which is why no method returns an
// error.
type Notifier interface {
	ListingCreated(ctx context.Context, ev Event)
	ListingSubmitted(ctx context.Context, ev Event)
	ListingApproved(ctx context.Context, ev Event)
	OrderProposed(ctx context.Context, ev Event)
	SubmissionApproved(ctx context.Context, ev Event, initiator domain.Role)
	ChangesRequested(ctx context.Context, ev Event, initiator domain.Role)
}

// Mailer delivers one HTML email.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// EmailNotifier maps workflow events to emails. The listings team is reached
// through a single distribution address; advisors through the listing owner's
// address.
type EmailNotifier struct {
	mailer    Mailer
	teamEmail string
	baseURL   string
}

func NewEmailNotifier(mailer Mailer, teamEmail, baseURL string) *EmailNotifier {
	return &EmailNotifier{mailer: mailer, teamEmail: teamEmail, baseURL: baseURL}
}

func (n *EmailNotifier) send(ctx context.Context, to, subject, body string) {
	if to == "" {
		return
	}
	if err := n.mailer.Send(ctx, to, subject, body); err != nil {
		log.Error().Err(err).Str("to", to).Str("subject", subject).Msg("notification delivery failed")
	}
}

func (n *EmailNotifier) ListingCreated(ctx context.Context, ev Event) {
	// the team does not need to hear about its own listing
	if ev.ActorEmail == n.teamEmail {
		return
	}
	subject, body := buildNewListingEmail(ev, n.baseURL)
	n.send(ctx, n.teamEmail, subject, body)
}

func (n *EmailNotifier) ListingSubmitted(ctx context.Context, ev Event) {
	subject, body := buildSubmissionEmail(ev, n.baseURL)
	n.send(ctx, n.teamEmail, subject, body)
}

func (n *EmailNotifier) ListingApproved(ctx context.Context, ev Event) {
	subject, body := buildApprovalEmail(ev, n.baseURL)
	n.send(ctx, ev.OwnerEmail, subject, body)
}

func (n *EmailNotifier) OrderProposed(ctx context.Context, ev Event) {
	subject, body := buildProposalEmail(ev, n.baseURL)
	n.send(ctx, ev.OwnerEmail, subject, body)
}

// initiatorTarget picks the side that started the round: advisors proposed it,
// so the owner hears back; the listings team proposed it, so the team address
// hears back.
func (n *EmailNotifier) initiatorTarget(ev Event, initiator domain.Role) string {
	if initiator == domain.RoleAdvisor {
		return ev.OwnerEmail
	}
	return n.teamEmail
}

func (n *EmailNotifier) SubmissionApproved(ctx context.Context, ev Event, initiator domain.Role) {
	subject, body := buildApprovalEmail(ev, n.baseURL)
	n.send(ctx, n.initiatorTarget(ev, initiator), subject, body)
}

func (n *EmailNotifier) ChangesRequested(ctx context.Context, ev Event, initiator domain.Role) {
	subject, body := buildChangesRequestedEmail(ev, n.baseURL)
	n.send(ctx, n.initiatorTarget(ev, initiator), subject, body)
}
