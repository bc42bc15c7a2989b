package notify

import (
	"fmt"
	"html"
)

func listingURL(baseURL, listingID string) string {
	return fmt.Sprintf("%s/listing/%s", baseURL, listingID)
}

func wrap(title, intro, details, linkURL, linkLabel string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; color: #333;">
  <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
    <h1 style="font-size: 24px;">%s</h1>
    <p>%s</p>
    %s
    <p><a href="%s">%s</a></p>
    <p style="font-size: 14px; color: #6b7280;">Please do not reply directly to this email.</p>
  </div>
</body>
</html>`, html.EscapeString(title), intro, details, linkURL, html.EscapeString(linkLabel))
}

func detailRow(label, value string) string {
	return fmt.Sprintf(`<p><strong>%s:</strong> %s</p>`, html.EscapeString(label), html.EscapeString(value))
}

func buildNewListingEmail(ev Event, baseURL string) (subject, body string) {
	subject = fmt.Sprintf("New Listing Created: %s", ev.Address)
	details := detailRow("Property", ev.Address) +
		detailRow("Created by", fmt.Sprintf("%s (%s)", ev.ActorName, ev.ActorEmail))
	body = wrap("New Listing Created",
		"A new listing has been created and is awaiting photos.",
		details, listingURL(baseURL, ev.ListingID), "View Listing")
	return subject, body
}

func buildSubmissionEmail(ev Event, baseURL string) (subject, body string) {
	subject = fmt.Sprintf("Listing Submitted for Review: %s", ev.Address)
	details := detailRow("Property", ev.Address) +
		detailRow("Submitted by", fmt.Sprintf("%s (%s)", ev.ActorName, ev.ActorEmail)) +
		detailRow("Photos", fmt.Sprintf("%d photos", ev.PhotoCount))
	body = wrap("Listing Submitted",
		"A listing has been submitted and is ready for review.",
		details, listingURL(baseURL, ev.ListingID), "Review Listing")
	return subject, body
}

func buildApprovalEmail(ev Event, baseURL string) (subject, body string) {
	subject = fmt.Sprintf("Your Listing Has Been Approved: %s", ev.Address)
	details := detailRow("Property", ev.Address) +
		detailRow("Photos", fmt.Sprintf("%d photos approved", ev.PhotoCount)) +
		detailRow("Reviewed by", ev.ActorName)
	body = wrap("Listing Approved",
		"Great news! The photo arrangement has been reviewed and approved.",
		details, listingURL(baseURL, ev.ListingID), "View Listing")
	return subject, body
}

func buildProposalEmail(ev Event, baseURL string) (subject, body string) {
	subject = fmt.Sprintf("Photo Order Proposal: %s", ev.Address)
	details := detailRow("Property", ev.Address) +
		detailRow("Proposed by", fmt.Sprintf("%s (%s)", ev.ActorName, ev.ActorEmail)) +
		detailRow("Photos", fmt.Sprintf("%d photos", ev.PhotoCount))
	body = wrap("Photo Order Proposal",
		"A new photo order has been proposed for your listing and is awaiting your approval.",
		details, listingURL(baseURL, ev.ListingID), "Review Proposal")
	return subject, body
}

func buildChangesRequestedEmail(ev Event, baseURL string) (subject, body string) {
	subject = fmt.Sprintf("Changes Requested: %s", ev.Address)
	details := detailRow("Property", ev.Address) +
		detailRow("Reviewed by", ev.ActorName)
	if ev.Note != "" {
		details += detailRow("Note", ev.Note)
	}
	body = wrap("Changes Requested",
		"The reviewer has requested changes to the proposed photo arrangement.",
		details, listingURL(baseURL, ev.ListingID), "View Listing")
	return subject, body
}
