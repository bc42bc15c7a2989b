// Package permission is the pure decision layer for the portal.
//
// Role capabilities:
//
//	| Role     | Own Listings | All Listings | Approve | Download | Manage Users |
//	|----------|--------------|--------------|---------|----------|--------------|
//	| ADVISOR  | CRUD, Submit | -            | -       | Own      | -            |
//	| LISTINGS | CRUD, Submit | View         | Yes     | Any      | -            |
//	| ADMIN    | CRUD, Submit | View, Delete | Yes     | Any      | Yes          |
//
// Every function here is side-effect free and never touches I/O; a denied check
// is a plain false, never an error.
package permission

import (
	"photo-listing-portal/internal/domain"
)

// Permission is a named capability, not an action on a specific object.
type Permission string

const (
	ListingCreate           Permission = "listing:create"
	ListingRead             Permission = "listing:read"
	ListingUpdate           Permission = "listing:update"
	ListingDelete           Permission = "listing:delete"
	ListingSubmit           Permission = "listing:submit"
	ListingReadAll          Permission = "listing:read_all"
	ListingDeleteAll        Permission = "listing:delete_all"
	ListingApprove          Permission = "listing:approve"
	ListingReorderSubmitted Permission = "listing:reorder_submitted"
	DownloadOwn             Permission = "download:own"
	DownloadAny             Permission = "download:any"
	UserManage              Permission = "user:manage"
)

var rolePermissions = map[domain.Role][]Permission{
	domain.RoleAdvisor: {
		ListingCreate,
		ListingRead,
		ListingUpdate,
		ListingDelete,
		ListingSubmit,
		DownloadOwn,
	},
	domain.RoleListings: {
		ListingCreate,
		ListingRead,
		ListingUpdate,
		ListingDelete,
		ListingSubmit,
		ListingReadAll,
		ListingApprove,
		ListingReorderSubmitted,
		DownloadOwn,
		DownloadAny,
	},
	domain.RoleAdmin: {
		ListingCreate,
		ListingRead,
		ListingUpdate,
		ListingDelete,
		ListingSubmit,
		ListingReadAll,
		ListingDeleteAll,
		ListingApprove,
		ListingReorderSubmitted,
		DownloadOwn,
		DownloadAny,
		UserManage,
	},
}

// Actor is the acting user as seen by the permission engine.
type Actor struct {
	ID   string
	Role domain.Role
}

// HasPermission reports whether the role holds the named capability.
func HasPermission(role domain.Role, p Permission) bool {
	for _, held := range rolePermissions[role] {
		if held == p {
			return true
		}
	}
	return false
}

// Permissions returns the capability set for a role.
func Permissions(role domain.Role) []Permission {
	return rolePermissions[role]
}

// CanAccessListing allows owners holding listing:read and anyone holding
// listing:read_all.
func CanAccessListing(actor Actor, listingUserID string) bool {
	if actor.ID == listingUserID {
		return HasPermission(actor.Role, ListingRead)
	}
	return HasPermission(actor.Role, ListingReadAll)
}

// CanModifyListing allows the owner holding listing:update; admins may modify
// any listing. A non-owner LISTINGS user cannot modify.
func CanModifyListing(actor Actor, listingUserID string) bool {
	if actor.ID == listingUserID {
		return HasPermission(actor.Role, ListingUpdate)
	}
	return actor.Role == domain.RoleAdmin
}

// CanDeleteListing allows the owner holding listing:delete, or anyone holding
// listing:delete_all.
func CanDeleteListing(actor Actor, listingUserID string) bool {
	if actor.ID == listingUserID {
		return HasPermission(actor.Role, ListingDelete)
	}
	return HasPermission(actor.Role, ListingDeleteAll)
}

// CanDownloadListing allows the owner holding download:own, or anyone holding
// download:any.
func CanDownloadListing(actor Actor, listingUserID string) bool {
	if actor.ID == listingUserID {
		return HasPermission(actor.Role, DownloadOwn)
	}
	return HasPermission(actor.Role, DownloadAny)
}

func CanApproveListing(actor Actor) bool {
	return HasPermission(actor.Role, ListingApprove)
}

func CanManageUsers(actor Actor) bool {
	return HasPermission(actor.Role, UserManage)
}

func IsListingsTeamOrAdmin(actor Actor) bool {
	return actor.Role == domain.RoleListings || actor.Role == domain.RoleAdmin
}

func IsAdmin(actor Actor) bool {
	return actor.Role == domain.RoleAdmin
}

// CanReorderListing decides photo reordering:
//   - DRAFT: only the owner with listing:update may reorder
//   - SUBMITTED/APPROVED: only holders of listing:reorder_submitted; owners
//     lose direct reorder rights once submitted
func CanReorderListing(actor Actor, listingUserID string, status domain.ListingStatus) bool {
	if status == domain.ListingDraft {
		return actor.ID == listingUserID && HasPermission(actor.Role, ListingUpdate)
	}
	return HasPermission(actor.Role, ListingReorderSubmitted)
}

// CanReviewSubmission is the approver-match rule: the caller may approve or
// request changes only if their role matches the submission's approver role.
// ADMIN is always authorized regardless of approver role.
func CanReviewSubmission(actor Actor, approverRole domain.Role) bool {
	if actor.Role == domain.RoleAdmin {
		return true
	}
	switch approverRole {
	case domain.RoleAdvisor:
		return actor.Role == domain.RoleAdvisor
	case domain.RoleListings:
		return actor.Role == domain.RoleListings
	}
	return false
}
