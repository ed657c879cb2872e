package deviceinfo

import (
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/F12-Syntex/plantuml-chatbot/internal/model"
)

// sessionCookie 会话标识 cookie 名
const sessionCookie = "plantuml_session"

var (
	botPattern = regexp.MustCompile(`(?i)bot|crawler|spider|crawling|google|facebook|twitter|linkedin|slurp|duckduckbot|baiduspider|yandex|sogou|exabot|facebot|ia_archiver`)

	windowsVersion = regexp.MustCompile(`Windows NT (\d+\.\d+)`)
	macVersion     = regexp.MustCompile(`Mac OS X (\d+[._]\d+)`)
	androidVersion = regexp.MustCompile(`Android (\d+(?:\.\d+)?)`)
	iosVersion     = regexp.MustCompile(`OS (\d+[._]\d+)`)

	edgeVersion    = regexp.MustCompile(`Edg/(\d+)`)
	chromeVersion  = regexp.MustCompile(`Chrome/(\d+)`)
	firefoxVersion = regexp.MustCompile(`Firefox/(\d+)`)
	safariVersion  = regexp.MustCompile(`Version/(\d+).*Safari`)
	operaVersion   = regexp.MustCompile(`(?:OPR|Opera)/(\d+)`)
)

// windowsNames NT 内核版本到市场名的映射
var windowsNames = map[string]string{
	"10.0": "Windows 10/11",
	"6.3":  "Windows 8.1",
	"6.2":  "Windows 8",
	"6.1":  "Windows 7",
}

// ParseUserAgent 从 UA 字符串解析操作系统、浏览器和设备类型
func ParseUserAgent(userAgent string) model.DeviceInfo {
	if userAgent == "" {
		return model.DeviceInfo{}
	}

	info := model.DeviceInfo{
		IsBot: botPattern.MatchString(userAgent),
	}

	info.OS = detectOS(userAgent)
	info.Browser, info.BrowserVersion = detectBrowser(userAgent)

	switch {
	case strings.Contains(userAgent, "Mobile"):
		info.Device = "Mobile"
	case strings.Contains(userAgent, "Tablet"), strings.Contains(userAgent, "iPad"):
		info.Device = "Tablet"
	default:
		info.Device = "Desktop"
	}
	return info
}

func detectOS(userAgent string) string {
	switch {
	case strings.Contains(userAgent, "Windows NT"):
		if m := windowsVersion.FindStringSubmatch(userAgent); m != nil {
			if name, ok := windowsNames[m[1]]; ok {
				return name
			}
			return "Windows " + m[1]
		}
		return "Windows"
	case strings.Contains(userAgent, "Mac OS X"):
		if m := macVersion.FindStringSubmatch(userAgent); m != nil {
			return "macOS " + strings.ReplaceAll(m[1], "_", ".")
		}
		return "macOS"
	case strings.Contains(userAgent, "Android"):
		if m := androidVersion.FindStringSubmatch(userAgent); m != nil {
			return "Android " + m[1]
		}
		return "Android"
	case strings.Contains(userAgent, "iPhone"), strings.Contains(userAgent, "iPad"):
		if m := iosVersion.FindStringSubmatch(userAgent); m != nil {
			return "iOS " + strings.ReplaceAll(m[1], "_", ".")
		}
		return "iOS"
	case strings.Contains(userAgent, "Linux"):
		return "Linux"
	}
	return ""
}

func detectBrowser(userAgent string) (browser, version string) {
	// Edge 和 Chrome 的 UA 互相包含,判定顺序不能换
	if m := edgeVersion.FindStringSubmatch(userAgent); m != nil {
		return "Microsoft Edge", m[1]
	}
	if m := chromeVersion.FindStringSubmatch(userAgent); m != nil {
		return "Chrome", m[1]
	}
	if m := firefoxVersion.FindStringSubmatch(userAgent); m != nil {
		return "Firefox", m[1]
	}
	if m := safariVersion.FindStringSubmatch(userAgent); m != nil && !strings.Contains(userAgent, "Chrome/") {
		return "Safari", m[1]
	}
	if m := operaVersion.FindStringSubmatch(userAgent); m != nil {
		return "Opera", m[1]
	}
	return "", ""
}

// ClientIP 按代理头链提取客户端 IP
func ClientIP(c *gin.Context) string {
	if v := c.GetHeader("X-Forwarded-For"); v != "" {
		return strings.TrimSpace(strings.Split(v, ",")[0])
	}
	for _, h := range []string{"X-Real-IP", "CF-Connecting-IP", "X-Client-IP"} {
		if v := c.GetHeader(h); v != "" {
			return v
		}
	}
	return c.ClientIP()
}

// ClientRegion 从 CDN 头提取地理信息
func ClientRegion(c *gin.Context) (region, country, city string) {
	if v := c.GetHeader("CF-Ray"); v != "" {
		if parts := strings.Split(v, "-"); len(parts) > 1 {
			region = parts[1]
		}
	}
	country = c.GetHeader("CF-IPCountry")
	city = c.GetHeader("CF-IPCity")

	if v := c.GetHeader("X-Vercel-Id"); v != "" {
		if parts := strings.Split(v, "::"); len(parts) > 1 {
			region = parts[1]
		}
	}
	return region, country, city
}

// SessionID 从 cookie 读取会话标识,没有则生成并种下
func SessionID(c *gin.Context) string {
	if v, err := c.Cookie(sessionCookie); err == nil && v != "" {
		return v
	}
	id := uuid.NewString()
	c.SetCookie(sessionCookie, id, 86400*30, "/", "", false, true)
	return id
}

// Collect 汇集一次请求的全部访问属性,时间戳由存储层补盖
func Collect(c *gin.Context, action string) model.AccessLogEntry {
	userAgent := c.GetHeader("User-Agent")
	region, country, city := ClientRegion(c)

	info := ParseUserAgent(userAgent)
	info.Referrer = c.GetHeader("Referer")
	info.URL = c.Request.URL.Path
	info.Method = c.Request.Method
	info.AcceptLanguage = c.GetHeader("Accept-Language")
	info.AcceptEncoding = c.GetHeader("Accept-Encoding")
	if v := c.GetHeader("Connection"); v != "" {
		info.ConnectionType = v
	} else {
		info.ConnectionType = c.GetHeader("X-Connection-Type")
	}
	info.Timezone = c.GetHeader("X-Timezone")
	if info.AcceptLanguage != "" {
		lang := strings.Split(info.AcceptLanguage, ",")[0]
		info.Language = strings.TrimSpace(strings.Split(lang, ";")[0])
	}

	return model.AccessLogEntry{
		Action:     action,
		IP:         ClientIP(c),
		Region:     region,
		Country:    country,
		City:       city,
		UserAgent:  userAgent,
		SessionID:  SessionID(c),
		DeviceInfo: info,
	}
}
