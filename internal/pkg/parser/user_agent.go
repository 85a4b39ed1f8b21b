package parser

import "strings"

// Client is what the tracking audit keeps about a caller's user agent.
type Client struct {
	OS        string `json:"os"`
	Browser   string `json:"browser"`
	Automated bool   `json:"automated"`
}

var automationMarkers = []string{
	"bot", "crawler", "spider", "curl", "wget", "python-requests", "httpclient", "go-http-client",
	"okhttp", "scrapy", "headless", "phantomjs", "postman",
}

func ParseUserAgent(ua string) Client {
	uaLower := strings.ToLower(ua)
	c := Client{OS: "Unknown", Browser: "Unknown"}

	// order matters: Android and iOS agents also mention linux / mac os
	switch {
	case strings.Contains(uaLower, "android"):
		c.OS = "Android"
	case strings.Contains(uaLower, "iphone") || strings.Contains(uaLower, "ipad"):
		c.OS = "iOS"
	case strings.Contains(uaLower, "windows"):
		c.OS = "Windows"
	case strings.Contains(uaLower, "mac os"):
		c.OS = "macOS"
	case strings.Contains(uaLower, "linux"):
		c.OS = "Linux"
	}

	switch {
	case strings.Contains(uaLower, "edg"):
		c.Browser = "Edge"
	case strings.Contains(uaLower, "firefox"):
		c.Browser = "Firefox"
	case strings.Contains(uaLower, "chrome"):
		c.Browser = "Chrome"
	case strings.Contains(uaLower, "safari"):
		c.Browser = "Safari"
	}

	if uaLower == "" {
		c.Automated = true
	}
	for _, m := range automationMarkers {
		if strings.Contains(uaLower, m) {
			c.Automated = true
			break
		}
	}
	return c
}
