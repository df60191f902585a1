package gateway

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/eaglebank/platform/shared/middleware"
	"github.com/gin-gonic/gin"
)

// Identity headers are only ever set by the gateway from verified claims.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
)

var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Proxy forwards requests to one upstream service.
type Proxy struct {
	baseURL string
	client  *http.Client
}

func NewProxy(baseURL string, client *http.Client) *Proxy {
	return &Proxy{baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

func (p *Proxy) Handle(c *gin.Context) {
	targetURL := p.baseURL + c.Request.URL.Path
	if c.Request.URL.RawQuery != "" {
		targetURL += "?" + c.Request.URL.RawQuery
	}

	var bodyBytes []byte
	if c.Request.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(c.Request.Body)
		if err != nil {
			middleware.RespondWithError(c, http.StatusBadRequest, "Failed to read request body")
			return
		}
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, targetURL, bytes.NewReader(bodyBytes))
	if err != nil {
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to create request")
		return
	}

	for key, values := range c.Request.Header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	for _, h := range hopHeaders {
		req.Header.Del(h)
	}
	req.Header.Del(HeaderUserID)
	req.Header.Del(HeaderUserEmail)

	// Forward user context from JWT middleware if authenticated
	if userID, ok := middleware.GetUserID(c); ok {
		req.Header.Set(HeaderUserID, userID)
		if email := middleware.GetEmail(c); email != "" {
			req.Header.Set(HeaderUserEmail, email)
		}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		middleware.LoggerFrom(c).Error("upstream request failed", "component", "proxy", "upstream", p.baseURL, "error", err)
		middleware.RespondWithError(c, http.StatusBadGateway, "Service unavailable")
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		middleware.LoggerFrom(c).Error("failed to read upstream response", "component", "proxy", "upstream", p.baseURL, "error", err)
		middleware.RespondWithError(c, http.StatusBadGateway, "Failed to read response")
		return
	}

	for key, values := range resp.Header {
		if key == "Content-Length" || key == "Content-Type" || key == middleware.RequestIDHeader {
			continue
		}
		for _, value := range values {
			c.Writer.Header().Add(key, value)
		}
	}
	c.Data(resp.StatusCode, resp.Header.Get("Content-Type"), respBody)
}
