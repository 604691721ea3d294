package report

import "github.com/google/uuid"

// NewRunID returns a fresh identifier for one run.
func NewRunID() string {
	return uuid.New().String()
}
