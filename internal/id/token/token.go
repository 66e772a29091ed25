// Package token provides short random identifier helpers.
package token

import (
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// Generator creates short URL-safe random tokens, used for source
// foreign IDs when the caller does not supply one.
type Generator struct{}

// New creates a new Generator.
func New() *Generator {
	return &Generator{}
}

// NewToken returns a 22-character URL-safe token derived from a UUIDv4.
// Collisions are negligible but not impossible; callers inserting tokens
// into a unique column must handle a constraint violation.
func (Generator) NewToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid4: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(id[:]), nil
}

// NewID returns a plain UUIDv4 string for callers that want a full UUID.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid4: %w", err)
	}
	return id.String(), nil
}
