package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/leadgen-cli/internal/model"
)

func TestExtractURLs(t *testing.T) {
	records := []model.BaseRecord{
		{Name: "A", PlaceID: "p1", Website: "https://www.example.com/"},
		{Name: "B", PlaceID: "p2", Website: "http://example.com"}, // same identity as A
		{Name: "C", PlaceID: "p3", Website: "https://facebook.com/some-page"},
		{Name: "D", PlaceID: "p4", Website: "https://cdn.example.org/brochure.pdf"},
		{Name: "E", PlaceID: "p5", Website: "ftp://files.example.net"},
		{Name: "F", PlaceID: "p6"}, // no website
		{Name: "G", PlaceID: "p7", Website: "https://other.example.net/contact"},
	}

	urls := ExtractURLs(records)

	assert.Equal(t, []string{
		"https://www.example.com/",
		"https://other.example.net/contact",
	}, urls)
}

func TestScrapeableURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.com", true},
		{"http://example.com/about", true},
		{"https://shop.example.com/catalog.html", true},
		{"https://instagram.com/acme", false},
		{"https://www.linkedin.com/company/acme", false},
		{"https://sub.tiktok.com/@acme", false},
		{"https://maps.apple.com/?q=acme", false},
		{"https://goo.gl/maps/xyz", false},
		{"https://notfacebook.com", true}, // suffix match must respect dot boundary
		{"https://example.com/logo.PNG", false},
		{"https://example.com/files.zip", false},
		{"mailto:info@example.com", false},
		{"://bad", false},
		{"https://", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, scrapeableURL(tt.url), "url %q", tt.url)
	}
}
