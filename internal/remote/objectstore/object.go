// Package objectstore implements the binary object half of the remote boundary.
package objectstore

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/bassista/snapgram/internal/remote"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// validateID rejects ids that could escape a storage root.
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: object id is required", remote.ErrInvalidArgument)
	}
	if !idPattern.MatchString(id) || len(id) > 128 {
		return fmt.Errorf("%w: malformed object id %q", remote.ErrInvalidArgument, id)
	}
	return nil
}

func checkUpload(upload remote.ObjectUpload, maxSize int64) error {
	if len(upload.Data) == 0 {
		return fmt.Errorf("%w: empty object %q", remote.ErrUpload, upload.Name)
	}
	if maxSize > 0 && int64(len(upload.Data)) > maxSize {
		return fmt.Errorf("%w: object %q is %d bytes, limit is %d", remote.ErrUpload, upload.Name, len(upload.Data), maxSize)
	}
	return nil
}

// contentType falls back to sniffing the payload when the caller did not set one.
func contentType(upload remote.ObjectUpload) string {
	if upload.ContentType != "" {
		return upload.ContentType
	}
	return http.DetectContentType(upload.Data)
}

func previewURL(publicURL, id string) string {
	return publicURL + "/objects/" + id
}
