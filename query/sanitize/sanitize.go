// Package sanitize validates identifiers, sort directions, and limit/offset
// values before they are concatenated into SQL text. Values travel through
// bound parameters, but identifiers cannot be parameterized in standard SQL,
// so these checks are the sole injection defense for them.
package sanitize

import (
	"regexp"
	"strings"

	eloquent "github.com/satishbabariya/eloquent-go"
)

const (
	// MaxIdentifierLength bounds a single identifier segment.
	MaxIdentifierLength = 64

	// MaxLimit bounds LIMIT and OFFSET values.
	MaxLimit = 1_000_000
)

// identifierRe matches a single valid unquoted SQL identifier segment.
var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Identifier validates a table or column name and returns it unchanged.
// The sentinel "*" is accepted as-is. Qualified names ("table.column") are
// split into at most two segments, each validated independently.
func Identifier(name string) (string, error) {
	if name == "*" {
		return name, nil
	}
	if name == "" {
		return "", &eloquent.ValidationError{
			Code:   eloquent.CodeInvalidIdentifier,
			Reason: "identifier is empty",
		}
	}
	if strings.Contains(name, ".") {
		segments := strings.Split(name, ".")
		if len(segments) > 2 {
			return "", &eloquent.ValidationError{
				Code:       eloquent.CodeInvalidIdentifier,
				Identifier: name,
				Reason:     "qualified name has more than two segments",
			}
		}
		for _, seg := range segments {
			if _, err := segment(seg); err != nil {
				return "", err
			}
		}
		return strings.Join(segments, "."), nil
	}
	return segment(name)
}

// segment validates one dot-free identifier segment.
func segment(name string) (string, error) {
	if name == "" {
		return "", &eloquent.ValidationError{
			Code:   eloquent.CodeInvalidIdentifier,
			Reason: "identifier segment is empty",
		}
	}
	if len(name) > MaxIdentifierLength {
		return "", &eloquent.ValidationError{
			Code:       eloquent.CodeInvalidIdentifier,
			Identifier: name,
			Max:        MaxIdentifierLength,
			Reason:     "identifier exceeds maximum length",
		}
	}
	if !identifierRe.MatchString(name) {
		return "", &eloquent.ValidationError{
			Code:       eloquent.CodeInvalidIdentifier,
			Identifier: name,
			Reason:     "identifier contains invalid characters",
		}
	}
	return name, nil
}

// Direction validates a sort direction case-insensitively and normalizes it
// to uppercase ASC or DESC.
func Direction(dir string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(dir)) {
	case "ASC":
		return "ASC", nil
	case "DESC":
		return "DESC", nil
	}
	return "", &eloquent.ValidationError{
		Code:       eloquent.CodeInvalidSortDirection,
		Identifier: dir,
		Reason:     "direction must be ASC or DESC",
	}
}

// Limit validates a LIMIT value: non-negative and within the hard ceiling.
func Limit(n int) error {
	if n < 0 || n > MaxLimit {
		return &eloquent.ValidationError{
			Code:   eloquent.CodeInvalidLimit,
			Value:  n,
			Max:    MaxLimit,
			Reason: "limit must be a non-negative integer within the ceiling",
		}
	}
	return nil
}

// Offset validates an OFFSET value: non-negative and within the hard ceiling.
func Offset(n int) error {
	if n < 0 || n > MaxLimit {
		return &eloquent.ValidationError{
			Code:   eloquent.CodeInvalidOffset,
			Value:  n,
			Max:    MaxLimit,
			Reason: "offset must be a non-negative integer within the ceiling",
		}
	}
	return nil
}
