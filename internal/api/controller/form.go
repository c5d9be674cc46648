package controller

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/bassista/snapgram/internal/social"
	"github.com/gin-gonic/gin"
)

const fileField = "file"

// formFiles reads the optional upload of a multipart form. A form without the
// file field yields no files.
func formFiles(c *gin.Context, maxSize int64) ([]social.File, error) {
	fh, err := c.FormFile(fileField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read form file: %w", err)
	}
	if maxSize > 0 && fh.Size > maxSize {
		return nil, fmt.Errorf("file %s exceeds %d bytes", fh.Filename, maxSize)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open form file: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read form file: %w", err)
	}
	return []social.File{{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Data: data}}, nil
}
