// Package imagehost uploads listing pictures to object storage and returns
// their public URLs.
package imagehost

import (
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ObjectKey builds a unique key for a picture under folder.
func ObjectKey(folder, contentType string) string {
	ext := ".bin"
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}
	switch contentType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	}
	return path.Join(strings.Trim(folder, "/"), uuid.NewString()+ext)
}

// publicURL joins a base URL, bucket and key.
func publicURL(base, bucket, key string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(base, "/"), bucket, key)
}
