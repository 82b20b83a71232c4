package exhibition

import (
	"fmt"

	"github.com/gosimple/slug"
)

// MakeSlug derives the URL slug of a title: transliterated to ASCII,
// lowercased, runs of other characters collapsed to single hyphens.
func MakeSlug(title string) (string, error) {
	s := slug.Make(title)
	if s == "" {
		return "", fmt.Errorf("%w: title %q yields an empty slug", ErrInvalidRequest, title)
	}
	return s, nil
}
