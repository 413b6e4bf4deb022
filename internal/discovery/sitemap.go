package discovery

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
)

// lastmod values seen in the wild: W3C datetime with and without time part.
var lastModLayouts = []string{
	time.RFC3339,
	"2006-01-02",
}

// parseSitemap extracts <url><loc> entries from a sitemap XML document.
func parseSitemap(body []byte) ([]indexEntry, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse sitemap xml: %w", err)
	}
	nodes := xmlquery.Find(doc, "//*[local-name()='url']")
	entries := make([]indexEntry, 0, len(nodes))
	for _, node := range nodes {
		loc := xmlquery.FindOne(node, "*[local-name()='loc']")
		if loc == nil {
			continue
		}
		entry := indexEntry{URL: strings.TrimSpace(loc.InnerText())}
		if lastMod := xmlquery.FindOne(node, "*[local-name()='lastmod']"); lastMod != nil {
			entry.LastMod = parseLastMod(lastMod.InnerText())
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func parseLastMod(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range lastModLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func matchesCategory(url, category string) bool {
	return strings.Contains(strings.ToLower(url), strings.ToLower(category))
}
