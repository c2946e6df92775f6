package service

import "github.com/learnbridge/learnbridge-api/internal/models"

// Authorization policy for the review workflow. Pure decision functions so
// the rules stay testable without a store.

// IsManagerEquivalent reports whether the role may perform management
// mutations (approve, reject, manager update/delete).
func IsManagerEquivalent(role models.UserRole) bool {
	return role == models.RoleResourceManager || role == models.RoleAdmin
}

// CanReviewResource reports whether the role may approve or reject pending
// submissions.
func CanReviewResource(role models.UserRole) bool {
	return IsManagerEquivalent(role)
}

// CanReadManagement reports whether the role may access the read-only
// management surfaces (pending queue, stats). Coordinators observe the
// review pipeline but cannot act on it.
func CanReadManagement(role models.UserRole) bool {
	return IsManagerEquivalent(role) || role == models.RoleCoordinator
}

// CanMutateResource decides update/delete access for a resource.
// Admins may always mutate. In a management context any manager-equivalent
// actor may mutate regardless of ownership; otherwise only the uploader may.
func CanMutateResource(actor *models.JWTClaims, resource *models.Resource, management bool) bool {
	if actor == nil || resource == nil {
		return false
	}
	if actor.Role == models.RoleAdmin {
		return true
	}
	if management {
		return IsManagerEquivalent(actor.Role)
	}
	return actor.UserID == resource.UploadedBy
}
