package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRequestTimeout_Deadline(t *testing.T) {
	tests := []struct {
		name         string
		timeout      time.Duration
		wantDeadline bool
	}{
		{name: "standard read", timeout: 10 * time.Second, wantDeadline: true},
		{name: "upload", timeout: 60 * time.Second, wantDeadline: true},
		{name: "disabled", timeout: 0},
		{name: "negative disables", timeout: -time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var remaining time.Duration
			var hasDeadline bool
			r := gin.New()
			r.GET("/api/posts/recent", RequestTimeout(tt.timeout), func(c *gin.Context) {
				var deadline time.Time
				deadline, hasDeadline = c.Request.Context().Deadline()
				remaining = time.Until(deadline)
				c.JSON(http.StatusOK, gin.H{"data": []string{}})
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/posts/recent", nil))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.wantDeadline, hasDeadline)
			if tt.wantDeadline {
				assert.InDelta(t, tt.timeout.Seconds(), remaining.Seconds(), 1)
			}
		})
	}
}

func TestRequestTimeout_SlowFetchGetsTimeoutBody(t *testing.T) {
	r := gin.New()
	r.GET("/api/posts/feed", RequestTimeout(50*time.Millisecond), func(c *gin.Context) {
		// a feed page that never arrives; the handler gives up with its context
		select {
		case <-time.After(time.Second):
			c.JSON(http.StatusOK, gin.H{"data": []string{}})
		case <-c.Request.Context().Done():
		}
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/posts/feed", nil))

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.JSONEq(t, `{"error":{"kind":"Timeout","message":"request timeout after 50ms"}}`, w.Body.String())
}

func TestRequestTimeout_WrittenResponseIsKept(t *testing.T) {
	r := gin.New()
	r.DELETE("/api/posts/:id", RequestTimeout(30*time.Millisecond), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
		c.Writer.WriteHeaderNow()
		<-c.Request.Context().Done()
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/posts/p1", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}
