package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseUserAgent(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want Client
	}{
		{
			"chrome on windows",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
			Client{OS: "Windows", Browser: "Chrome"},
		},
		{
			"safari on iphone",
			"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			Client{OS: "iOS", Browser: "Safari"},
		},
		{
			"chrome on android",
			"Mozilla/5.0 (Linux; Android 14) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Mobile Safari/537.36",
			Client{OS: "Android", Browser: "Chrome"},
		},
		{
			"edge",
			"Mozilla/5.0 (Windows NT 10.0) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36 Edg/120.0",
			Client{OS: "Windows", Browser: "Edge"},
		},
		{"curl", "curl/8.4.0", Client{OS: "Unknown", Browser: "Unknown", Automated: true}},
		{"python scraper", "python-requests/2.31", Client{OS: "Unknown", Browser: "Unknown", Automated: true}},
		{"empty", "", Client{OS: "Unknown", Browser: "Unknown", Automated: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseUserAgent(tt.ua))
		})
	}
}
