package models

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gofrs/uuid"

	"github.com/notion-go/notion/pkg/constants"
)

// compactIDLength is the length of an id written without dashes, as it
// appears at the end of page URLs.
const compactIDLength = 32

// NormalizeID converts a record id in any accepted form (dashed, compact,
// braced) to the dashed lowercase form the remote store uses.
func NormalizeID(id string) (string, error) {
	u, err := uuid.FromString(strings.TrimSpace(id))
	if err != nil {
		return "", fmt.Errorf("%w: %q", constants.ErrInvalidID, id)
	}
	return u.String(), nil
}

// ExtractID accepts either a record id or a page URL and returns the
// normalized id. For URLs the id is the trailing 32 hex characters of the
// last path segment ("My-Page-0123...cdef").
func ExtractID(urlOrID string) (string, error) {
	if !isURL(urlOrID) {
		return NormalizeID(urlOrID)
	}
	u, err := url.Parse(urlOrID)
	if err != nil {
		return "", fmt.Errorf("%w: %q", constants.ErrInvalidID, urlOrID)
	}
	compact, ok := trailingCompactID(lastSegment(u.Path))
	if !ok {
		return "", fmt.Errorf("%w: no page id in %q", constants.ErrInvalidID, urlOrID)
	}
	return NormalizeID(compact)
}

// ParseViewURL splits a database page URL of the form
//
//	https://host/[workspace/]<title->?<32 hex block id>?v=<32 hex view id>
//
// into the normalized block id and view id.
func ParseViewURL(raw string) (blockID, viewID string, err error) {
	if !isURL(raw) {
		return "", "", fmt.Errorf("%w: %q", constants.ErrInvalidViewURL, raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %q", constants.ErrInvalidViewURL, raw)
	}

	compactBlock, ok := trailingCompactID(lastSegment(u.Path))
	if !ok {
		return "", "", fmt.Errorf("%w: missing block id in %q", constants.ErrInvalidViewURL, raw)
	}
	compactView := u.Query().Get("v")
	if len(compactView) != compactIDLength || !isHex(compactView) {
		return "", "", fmt.Errorf("%w: missing view id in %q", constants.ErrInvalidViewURL, raw)
	}

	if blockID, err = NormalizeID(compactBlock); err != nil {
		return "", "", fmt.Errorf("%w: %q", constants.ErrInvalidViewURL, raw)
	}
	if viewID, err = NormalizeID(compactView); err != nil {
		return "", "", fmt.Errorf("%w: %q", constants.ErrInvalidViewURL, raw)
	}
	return blockID, viewID, nil
}

// NewID generates a fresh record id.
func NewID() string {
	return uuid.Must(uuid.NewV4()).String()
}

func isURL(s string) bool {
	return strings.HasPrefix(s, constants.HTTPScheme+"://") || strings.HasPrefix(s, constants.HTTPSecureScheme+"://")
}

func lastSegment(path string) string {
	path = strings.TrimRight(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

func trailingCompactID(segment string) (string, bool) {
	if len(segment) < compactIDLength {
		return "", false
	}
	id := segment[len(segment)-compactIDLength:]
	if !isHex(id) {
		return "", false
	}
	// A longer segment must separate the title from the id with a dash.
	if len(segment) > compactIDLength && segment[len(segment)-compactIDLength-1] != '-' {
		return "", false
	}
	return id, true
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return false
		}
	}
	return true
}
