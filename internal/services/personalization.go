package services

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hanko-field/teamwear/internal/domain"
	"github.com/hanko-field/teamwear/internal/platform/textutil"
)

var (
	// ErrPersonalizationInvalid wraps every grid validation failure.
	ErrPersonalizationInvalid = errors.New("personalization: invalid rows")
	// ErrRowOutOfRange is returned when an edit targets a row that does not exist.
	ErrRowOutOfRange = errors.New("personalization: row out of range")
	// ErrUnknownRowField is returned for edits of unknown columns.
	ErrUnknownRowField = errors.New("personalization: unknown field")
)

const (
	maxNameRunes   = 30
	maxNumberDigit = 3
)

// RowField names an editable column of the grid.
type RowField string

const (
	RowFieldName   RowField = "name"
	RowFieldNumber RowField = "number"
	RowFieldSize   RowField = "size"
)

// ColumnVisibility controls which optional columns the grid shows.
type ColumnVisibility struct {
	Name   bool `json:"name"`
	Number bool `json:"number"`
}

// VisibilityFor derives column visibility from the add-on toggles: names follow
// the player-names toggle, numbers either of the number toggles.
func VisibilityFor(addOns map[domain.AddOn]bool) ColumnVisibility {
	return ColumnVisibility{
		Name:   addOns[domain.AddOnPlayerNames],
		Number: addOns[domain.AddOnBackNumber] || addOns[domain.AddOnFrontNumber],
	}
}

// BuildRows returns a fresh set of quantity empty rows numbered from 1. Nothing is
// carried over from a previous grid.
func BuildRows(quantity int) []domain.PersonalizationRow {
	if quantity <= 0 {
		return []domain.PersonalizationRow{}
	}
	rows := make([]domain.PersonalizationRow, quantity)
	for i := range rows {
		rows[i].Ordinal = i + 1
	}
	return rows
}

// UpdateRow edits one cell in place. Edits of hidden columns are ignored.
func UpdateRow(rows []domain.PersonalizationRow, index int, field RowField, value string, visibility ColumnVisibility) error {
	if index < 0 || index >= len(rows) {
		return fmt.Errorf("%w: %d", ErrRowOutOfRange, index)
	}
	row := &rows[index]
	switch field {
	case RowFieldName:
		if visibility.Name {
			row.Name = textutil.SanitizeText(value)
		}
	case RowFieldNumber:
		if visibility.Number {
			row.Number = strings.TrimSpace(value)
		}
	case RowFieldSize:
		row.Size = textutil.CleanDisplay(value)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRowField, field)
	}
	return nil
}

// RowIssue describes one invalid cell. Ordinal 0 refers to the grid as a whole.
type RowIssue struct {
	Ordinal int      `json:"ordinal"`
	Field   RowField `json:"field,omitempty"`
	Reason  string   `json:"reason"`
}

// PersonalizationError lists every issue found in the grid.
type PersonalizationError struct {
	Issues []RowIssue
}

func (e *PersonalizationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		if issue.Ordinal == 0 {
			parts = append(parts, issue.Reason)
			continue
		}
		parts = append(parts, fmt.Sprintf("row %d %s: %s", issue.Ordinal, issue.Field, issue.Reason))
	}
	return fmt.Sprintf("%s: %s", ErrPersonalizationInvalid.Error(), strings.Join(parts, "; "))
}

func (e *PersonalizationError) Unwrap() error { return ErrPersonalizationInvalid }

// ValidateRows checks the grid against the current quantity: one row per unit,
// numbers of one to three digits, names of at most 30 characters and sizes taken
// from the offered list. Empty cells are allowed.
func ValidateRows(rows []domain.PersonalizationRow, quantity int, visibility ColumnVisibility, sizes []string) error {
	var issues []RowIssue
	if quantity < 0 {
		quantity = 0
	}
	if len(rows) != quantity {
		issues = append(issues, RowIssue{Reason: fmt.Sprintf("expected %d rows, got %d", quantity, len(rows))})
	}
	for _, row := range rows {
		if visibility.Name && utf8.RuneCountInString(row.Name) > maxNameRunes {
			issues = append(issues, RowIssue{Ordinal: row.Ordinal, Field: RowFieldName, Reason: "too long"})
		}
		if visibility.Number && row.Number != "" && !validJerseyNumber(row.Number) {
			issues = append(issues, RowIssue{Ordinal: row.Ordinal, Field: RowFieldNumber, Reason: "not a number"})
		}
		if row.Size != "" && len(sizes) > 0 && !ContainsSize(sizes, row.Size) {
			issues = append(issues, RowIssue{Ordinal: row.Ordinal, Field: RowFieldSize, Reason: "unknown size"})
		}
	}
	if len(issues) == 0 {
		return nil
	}
	return &PersonalizationError{Issues: issues}
}

func validJerseyNumber(value string) bool {
	if value == "" || len(value) > maxNumberDigit {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// rowSummary joins the non-empty visible cells of a row with ", ".
func rowSummary(row domain.PersonalizationRow, visibility ColumnVisibility) string {
	parts := make([]string, 0, 3)
	if visibility.Name && row.Name != "" {
		parts = append(parts, row.Name)
	}
	if visibility.Number && row.Number != "" {
		parts = append(parts, row.Number)
	}
	if row.Size != "" {
		parts = append(parts, row.Size)
	}
	return strings.Join(parts, ", ")
}
