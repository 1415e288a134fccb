// Package authz decides who may change or see a post or comment.
package authz

import "inkwell/internal/models"

// Owned is anything with a single owning user.
type Owned interface {
	OwnerID() uint
}

// CanMutate reports whether user may update or delete resource.
// Only the owner may; an anonymous caller never may.
func CanMutate(user *models.User, resource Owned) bool {
	return user != nil && resource != nil && resource.OwnerID() == user.ID
}

// CanView reports whether user may read post. Drafts are visible to their owner only.
func CanView(user *models.User, post *models.Post) bool {
	if post == nil {
		return false
	}
	return post.Published || CanMutate(user, post)
}
