package models

import "github.com/google/uuid"

// newID returns a time-ordered identifier so primary keys sort by creation.
func newID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
