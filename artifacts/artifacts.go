// Package artifacts stores the report documents engines write at the end of a
// run.
package artifacts

import (
	"context"
	"errors"
	"path"
	"strings"
)

var ErrInvalidKey = errors.New("artifacts: invalid key")

// Store persists a blob under key and returns a location string that
// identifies it for humans and logs.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// CleanKey normalizes a slash separated key and rejects keys that escape the
// store root.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" {
		return "", ErrInvalidKey
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+key), "/")
	if cleaned == "" || cleaned == "." {
		return "", ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", ErrInvalidKey
		}
	}
	return cleaned, nil
}
