package domain

import (
	"fmt"

	apperrors "github.com/lorrc/clinic-queue/internal/core/errors"
)

// Category is the service class a ticket belongs to.
type Category string

const (
	CategoryNormal   Category = "Normal"
	CategoryPriority Category = "Priority"
)

// displayCodeWidth is the minimum number of digits in a display code.
// Sequence numbers wider than this are printed in full.
const displayCodeWidth = 3

// Categories lists the known categories in a stable order.
func Categories() []Category {
	return []Category{CategoryNormal, CategoryPriority}
}

// IsValid checks if the category is one of the known values
func (c Category) IsValid() bool {
	switch c {
	case CategoryNormal, CategoryPriority:
		return true
	}
	return false
}

// Letter returns the single-letter prefix used in display codes.
func (c Category) Letter() string {
	switch c {
	case CategoryNormal:
		return "N"
	case CategoryPriority:
		return "P"
	}
	return ""
}

// ParseCategory converts wire input into a Category. Matching is exact.
func ParseCategory(value string) (Category, error) {
	c := Category(value)
	if !c.IsValid() {
		return "", apperrors.ErrInvalidCategory
	}
	return c, nil
}

// CategoryFromLetter maps a display code prefix back to its category.
func CategoryFromLetter(letter string) (Category, error) {
	for _, c := range Categories() {
		if c.Letter() == letter {
			return c, nil
		}
	}
	return "", apperrors.ErrInvalidCategory
}

// Ticket is an issued, immutable service token.
type Ticket struct {
	Category       Category
	SequenceNumber int
	DisplayCode    string
}

// NewTicket is a factory function to create a valid ticket.
func NewTicket(category Category, sequenceNumber int) (Ticket, error) {
	if !category.IsValid() {
		return Ticket{}, apperrors.ErrInvalidCategory
	}
	if sequenceNumber < 1 {
		return Ticket{}, fmt.Errorf("sequence number must be positive, got %d", sequenceNumber)
	}

	return Ticket{
		Category:       category,
		SequenceNumber: sequenceNumber,
		DisplayCode:    FormatDisplayCode(category, sequenceNumber),
	}, nil
}

// FormatDisplayCode renders the category letter followed by the sequence
// number zero-padded to three digits.
func FormatDisplayCode(category Category, sequenceNumber int) string {
	return fmt.Sprintf("%s%0*d", category.Letter(), displayCodeWidth, sequenceNumber)
}
