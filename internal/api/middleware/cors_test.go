package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const webApp = "http://localhost:5173"

// corsEngine mounts a read and the multipart post routes behind the middleware.
func corsEngine(allowedOrigins string) *gin.Engine {
	r := gin.New()
	r.Use(CORSMiddleware(allowedOrigins))
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": []string{}}) }
	r.GET("/api/posts/recent", ok)
	r.POST("/api/posts", ok)
	r.PUT("/api/posts/:id", ok)
	return r
}

func TestCORSMiddleware_Reads(t *testing.T) {
	tests := []struct {
		name        string
		allowed     string
		origin      string
		wantOrigin  string
		wantCreds   string
		wantVary    string
		wantMethods bool
	}{
		{name: "wildcard", allowed: "*", origin: webApp, wantOrigin: "*", wantMethods: true},
		{name: "listed origin", allowed: webApp + ",https://snapgram.app", origin: "https://snapgram.app",
			wantOrigin: "https://snapgram.app", wantCreds: "true", wantVary: "Origin", wantMethods: true},
		{name: "listed with whitespace", allowed: "  " + webApp + "  ,  https://snapgram.app ", origin: webApp,
			wantOrigin: webApp, wantCreds: "true", wantVary: "Origin", wantMethods: true},
		{name: "unlisted origin", allowed: webApp, origin: "https://evil.example"},
		{name: "no origin header", allowed: webApp},
		{name: "nothing allowed", allowed: "", origin: webApp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/posts/recent", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			corsEngine(tt.allowed).ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code, "CORS never blocks the request itself")
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCreds, w.Header().Get("Access-Control-Allow-Credentials"))
			assert.Equal(t, tt.wantVary, w.Header().Get("Vary"))
			assert.Equal(t, tt.wantMethods, w.Header().Get("Access-Control-Allow-Methods") != "")
		})
	}
}

func TestCORSMiddleware_UploadPreflight(t *testing.T) {
	tests := []struct {
		name        string
		allowed     string
		method      string
		reqHeaders  string
		wantCode    int
		wantHeaders string
	}{
		{name: "create post, wildcard", allowed: "*", method: http.MethodPost, wantCode: http.StatusNoContent, wantHeaders: corsHeaders},
		{name: "edit post, listed origin", allowed: webApp, method: http.MethodPut, wantCode: http.StatusNoContent, wantHeaders: corsHeaders},
		{name: "requested headers are echoed", allowed: webApp, method: http.MethodPut,
			reqHeaders: "Content-Type, X-Upload-Name", wantCode: http.StatusNoContent, wantHeaders: "Content-Type, X-Upload-Name"},
		{name: "unlisted origin falls through", allowed: "https://snapgram.app", method: http.MethodPut, wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := "/api/posts"
			if tt.method == http.MethodPut {
				path = "/api/posts/p1"
			}
			req := httptest.NewRequest(http.MethodOptions, path, nil)
			req.Header.Set("Origin", webApp)
			req.Header.Set("Access-Control-Request-Method", tt.method)
			if tt.reqHeaders != "" {
				req.Header.Set("Access-Control-Request-Headers", tt.reqHeaders)
			}
			w := httptest.NewRecorder()
			corsEngine(tt.allowed).ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantHeaders, w.Header().Get("Access-Control-Allow-Headers"))
			if tt.wantCode == http.StatusNoContent {
				assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), tt.method)
				assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
			}
		})
	}
}
