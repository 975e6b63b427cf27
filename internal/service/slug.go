package service

import (
	"context"
	"fmt"

	"github.com/gosimple/slug"
	"github.com/rs/xid"
)

// maxSlugAttempts bounds the "-2", "-3", ... suffix search before falling back
// to a random suffix.
const maxSlugAttempts = 50

// uniqueSlug derives a URL slug from text and makes it unique with exists.
// Text with nothing sluggable ("???") gets an xid.
func uniqueSlug(ctx context.Context, text string, exists func(context.Context, string) (bool, error)) (string, error) {
	base := slug.Make(text)
	if base == "" {
		return xid.New().String(), nil
	}

	candidate := base
	for i := 2; i <= maxSlugAttempts+1; i++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("checking slug %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return base + "-" + xid.New().String(), nil
}
