package deviceinfo

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/F12-Syntex/plantuml-chatbot/internal/model"
)

const (
	chromeWindowsUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
	safariIPhoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"
	edgeUA          = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36 Edg/126.0.0.0"
	googlebotUA     = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)

func TestParseUserAgent(t *testing.T) {
	cases := []struct {
		name    string
		ua      string
		os      string
		browser string
		device  string
		isBot   bool
	}{
		{"chrome on windows", chromeWindowsUA, "Windows 10/11", "Chrome", "Desktop", false},
		{"safari on iphone", safariIPhoneUA, "iOS 17.4", "Safari", "Mobile", false},
		{"edge on windows", edgeUA, "Windows 10/11", "Microsoft Edge", "Desktop", false},
		{"googlebot", googlebotUA, "", "", "Desktop", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			info := ParseUserAgent(tc.ua)
			assert.Equal(t, tc.os, info.OS)
			assert.Equal(t, tc.browser, info.Browser)
			assert.Equal(t, tc.device, info.Device)
			assert.Equal(t, tc.isBot, info.IsBot)
		})
	}
}

func TestParseUserAgentEmpty(t *testing.T) {
	assert.Equal(t, model.DeviceInfo{}, ParseUserAgent(""))
}

func newTestContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/api/chat/abc", nil)
	return c, w
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	c, _ := newTestContext(t)
	c.Request.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", ClientIP(c))

	c2, _ := newTestContext(t)
	c2.Request.Header.Set("CF-Connecting-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", ClientIP(c2))
}

func TestClientRegionFromCDNHeaders(t *testing.T) {
	c, _ := newTestContext(t)
	c.Request.Header.Set("CF-Ray", "8abc123-SIN")
	c.Request.Header.Set("CF-IPCountry", "SG")

	region, country, _ := ClientRegion(c)
	assert.Equal(t, "SIN", region)
	assert.Equal(t, "SG", country)

	// Vercel 头优先级在 CF-Ray 之后生效
	c.Request.Header.Set("X-Vercel-Id", "sfo1::iad1::12345")
	region, _, _ = ClientRegion(c)
	assert.Equal(t, "iad1", region)
}

func TestCollectAssemblesEntry(t *testing.T) {
	c, w := newTestContext(t)
	c.Request.Header.Set("User-Agent", chromeWindowsUA)
	c.Request.Header.Set("Accept-Language", "en-US,en;q=0.9")
	c.Request.Header.Set("Referer", "https://example.com/")
	c.Request.Header.Set("X-Forwarded-For", "203.0.113.7")

	entry := Collect(c, model.ActionViewed)
	assert.Equal(t, model.ActionViewed, entry.Action)
	assert.Equal(t, "203.0.113.7", entry.IP)
	assert.Equal(t, "Chrome", entry.Browser)
	assert.Equal(t, "en-US", entry.Language)
	assert.Equal(t, "/api/chat/abc", entry.URL)
	assert.Equal(t, "GET", entry.Method)
	require.NotEmpty(t, entry.SessionID)

	// 无 cookie 时会生成会话标识并种下
	assert.Contains(t, w.Header().Get("Set-Cookie"), "plantuml_session=")
}
