// Package source implements the Source model and its registry. A Source
// is a named provenance origin: crawlers run against a source, and every
// ingested document belongs to exactly one. The registry owns the source
// row lifecycle, including the cascading delete over dependent document,
// page, and reference rows.
package source

import (
	"strings"
	"time"
	"unicode"
)

const (
	maxForeignIDLen = 255
	maxLabelLen     = 1024
)

// Source is a provenance origin that crawlers operate against.
type Source struct {
	ID        int64     `json:"id"`
	ForeignID string    `json:"foreign_id"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateInput carries the caller-supplied fields for CreateOrGet. An
// empty ForeignID means "generate one"; Label is optional.
type CreateInput struct {
	ForeignID string
	Label     string
}

// Validate checks the input fields. A supplied foreign ID must be a
// reasonable identifier: non-blank, no whitespace, bounded length.
func (in CreateInput) Validate() error {
	if in.ForeignID != "" {
		if strings.TrimSpace(in.ForeignID) != in.ForeignID {
			return &ValidationError{Field: "foreign_id", Reason: "must not have surrounding whitespace"}
		}
		if strings.IndexFunc(in.ForeignID, unicode.IsSpace) >= 0 {
			return &ValidationError{Field: "foreign_id", Reason: "must not contain whitespace"}
		}
		if len(in.ForeignID) > maxForeignIDLen {
			return &ValidationError{Field: "foreign_id", Reason: "too long"}
		}
	}
	if len(in.Label) > maxLabelLen {
		return &ValidationError{Field: "label", Reason: "too long"}
	}
	return nil
}
