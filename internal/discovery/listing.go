package discovery

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link-text and path markers that identify auction documents on directory
// and listing pages.
var listingMarkers = []string{"edital", "leilao", "leilão", "lote", "alienacao", "alienação"}

// documentExtensions are attachment types handled by the extractors.
var documentExtensions = []string{".pdf", ".xlsx", ".csv", ".html", ".htm"}

// parseListing extracts candidate document links from an HTML directory or
// listing page.
func parseListing(body []byte, baseURL string) ([]indexEntry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse listing base url: %w", err)
	}

	var entries []indexEntry
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		if !looksLikeDocument(resolved.String(), sel.Text()) {
			return
		}
		entries = append(entries, indexEntry{URL: resolved.String()})
	})
	return entries, nil
}

func looksLikeDocument(link, text string) bool {
	lowered := strings.ToLower(link)
	for _, ext := range documentExtensions {
		if strings.HasSuffix(strings.ToLower(pathOnly(lowered)), ext) {
			return true
		}
	}
	haystack := lowered + " " + strings.ToLower(text)
	for _, marker := range listingMarkers {
		if strings.Contains(haystack, marker) {
			return true
		}
	}
	return false
}

func pathOnly(link string) string {
	if u, err := url.Parse(link); err == nil {
		return u.Path
	}
	return link
}
