package controller

import (
	"context"
	"errors"
	"net/http"
	"reflect"

	"github.com/bassista/snapgram/internal/cache"
	"github.com/bassista/snapgram/internal/logger"
	"github.com/bassista/snapgram/internal/remote"
	"github.com/containerd/errdefs"
	"github.com/gin-gonic/gin"
)

// ReadResponse is the JSON shape of every cached read.
type ReadResponse[T any] struct {
	Data      T           `json:"data"`
	IsLoading bool        `json:"isLoading"`
	IsStale   bool        `json:"isStale"`
	State     cache.State `json:"state,omitempty"`
	Error     *ErrorBody  `json:"error,omitempty"`
}

type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func errorBody(err error) *ErrorBody {
	if err == nil {
		return nil
	}
	return &ErrorBody{Kind: remote.KindOf(err), Message: err.Error()}
}

// StatusFor maps an error of the remote taxonomy to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errdefs.IsInvalidArgument(err):
		return http.StatusBadRequest
	case errdefs.IsUnauthorized(err):
		return http.StatusUnauthorized
	case errdefs.IsNotFound(err):
		return http.StatusNotFound
	case errdefs.IsAlreadyExists(err):
		return http.StatusConflict
	case errdefs.IsUnavailable(err):
		if remote.KindOf(err) == "UploadError" {
			return http.StatusBadGateway
		}
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// readResponse builds the envelope of a cached read. A read that failed without
// any data to show gets the status of its error; stale data with an error is
// still a 200.
func readResponse[T any](c *gin.Context, res cache.Result[T]) (int, ReadResponse[T]) {
	status := http.StatusOK
	if res.Err != nil {
		_ = c.Error(res.Err)
		if reflect.ValueOf(&res.Data).Elem().IsZero() {
			status = StatusFor(res.Err)
		}
	}
	return status, ReadResponse[T]{
		Data:      res.Data,
		IsLoading: res.IsLoading,
		IsStale:   res.IsStale,
		State:     res.State,
		Error:     errorBody(res.Err),
	}
}

func writeResult[T any](c *gin.Context, res cache.Result[T]) {
	status, body := readResponse(c, res)
	c.JSON(status, body)
}

// writeError renders a failed mutation.
func writeError(c *gin.Context, component string, err error) {
	status := StatusFor(err)
	log := logger.WithComponent(component).WithError(err)
	if status >= http.StatusInternalServerError {
		log.Errorf("%s %s failed", c.Request.Method, c.FullPath())
	} else {
		log.Debugf("%s %s rejected", c.Request.Method, c.FullPath())
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": errorBody(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": &ErrorBody{Kind: "InvalidArgument", Message: msg}})
}

func forbidden(c *gin.Context, msg string) {
	c.JSON(http.StatusForbidden, gin.H{"error": &ErrorBody{Kind: "Forbidden", Message: msg}})
}
