package entity

import "github.com/google/uuid"

// Owned is anything with a single owning user.
type Owned interface {
	OwnerID() uuid.UUID
}

// IsOwner is the only authorization rule for mutating posts and comments.
func IsOwner(resource Owned, requesterID uuid.UUID) bool {
	if resource == nil || requesterID == uuid.Nil {
		return false
	}
	return resource.OwnerID() == requesterID
}
