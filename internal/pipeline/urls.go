package pipeline

import (
	"net/url"
	"path"
	"strings"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// excludedDomains lists hosts that reliably fail contact extraction or
// return irrelevant content: social networks and mapping services. Matching
// is by host suffix so subdomains are covered.
var excludedDomains = []string{
	"facebook.com",
	"instagram.com",
	"twitter.com",
	"x.com",
	"linkedin.com",
	"youtube.com",
	"tiktok.com",
	"pinterest.com",
	"google.com",
	"goo.gl",
	"maps.apple.com",
	"waze.com",
}

// excludedExtensions lists direct file links that cannot yield contact pages.
var excludedExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".svg": {},
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {},
	".zip": {}, ".rar": {}, ".gz": {}, ".tar": {}, ".7z": {},
}

// ExtractURLs derives the scrapeable website URL list from stage-1 records:
// deduplicated by normalized identity, excluding non-http(s) schemes, social
// and mapping domains, and direct file links. Records with no website are
// omitted here but still survive into the merge as no-enrichment records.
func ExtractURLs(records []model.BaseRecord) []string {
	urls := make([]string, 0, len(records))
	seen := make(map[string]struct{}, len(records))

	for _, r := range records {
		website := strings.TrimSpace(r.Website)
		if website == "" {
			continue
		}
		if !scrapeableURL(website) {
			continue
		}
		key := normalizeURLKey(website)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		urls = append(urls, website)
	}

	return urls
}

// scrapeableURL reports whether the URL is worth spending stage-2 budget on.
func scrapeableURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, d := range excludedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return false
		}
	}

	ext := strings.ToLower(path.Ext(u.Path))
	if _, bad := excludedExtensions[ext]; bad {
		return false
	}

	return true
}
