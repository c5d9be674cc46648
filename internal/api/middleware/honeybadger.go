package middleware

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/bassista/snapgram/internal/remote"
	"github.com/gin-gonic/gin"
	honeybadger "github.com/honeybadger-io/honeybadger-go"
	"github.com/sirupsen/logrus"
)

// Notifier is the subset of the honeybadger client used by the middleware.
type Notifier interface {
	Notify(err interface{}, extra ...interface{}) (string, error)
}

// HoneybadgerMiddleware sends error/warning notifications to Honeybadger when
// HONEYBADGER_API_KEY is set.
func HoneybadgerMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	apiKey := os.Getenv("HONEYBADGER_API_KEY")
	if apiKey == "" {
		logger.Info("Honeybadger is not active. To enable error reporting, set the HONEYBADGER_API_KEY environment variable.")
		return func(c *gin.Context) {
			c.Next()
		}
	}

	client := honeybadger.New(honeybadger.Configuration{
		APIKey: apiKey,
		Env:    os.Getenv("GO_ENV"),
	})
	logger.Info("Honeybadger error reporting is enabled.")
	return ReportErrors(logger, client)
}

// ReportErrors notifies n of panics and of every 4xx (except 404) and 5xx
// response. Notices are tagged with the error kind of the last handler error.
// On panic it re-panics so gin.Recovery writes the response.
func ReportErrors(logger *logrus.Logger, n Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				_, _ = n.Notify(fmt.Sprintf("Panic: %s %s", c.Request.Method, c.Request.URL.Path),
					c.Request, honeybadger.Context{"stack": string(debug.Stack())}, honeybadger.Tags{"panic", "http"})
				logger.Error("Recovered from panic, notified Honeybadger: ", rec)
				panic(rec)
			}
		}()

		c.Next()

		status := c.Writer.Status()
		if status < 400 || status == 404 {
			return
		}
		kind := "Unknown"
		if last := c.Errors.Last(); last != nil {
			kind = remote.KindOf(last.Err)
		}
		msg := fmt.Sprintf("HTTP %d: %s %s", status, c.Request.Method, c.FullPath())
		if status >= 500 {
			_, _ = n.Notify("Error: "+msg, c.Request, honeybadger.Tags{"5XX", "http", kind})
		} else {
			_, _ = n.Notify("Warning: "+msg, honeybadger.Tags{"4XX", "http", kind})
		}
		logger.Warnf("Honeybadger reported %s (%s)", msg, kind)
	}
}
