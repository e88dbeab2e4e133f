// Package linkextract discovers internal links (spec §4.6 deep mode: same
// netloc as the scan root) from a page's rendered HTML, grounded on the
// teacher's crawler.LinkExtractor (goquery-based anchor discovery + relative
// URL resolution), trimmed to what deep-mode crawling needs.
package linkextract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// InternalLinks parses html (as rendered at pageURL) and returns every
// same-host <a href> link, resolved to an absolute URL, deduplicated, and
// stripped of fragments.
func InternalLinks(html, pageURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" || strings.HasPrefix(href, "#") {
			return
		}
		if strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		resolved.Fragment = ""
		if !sameHost(base, resolved) {
			return
		}
		abs := resolved.String()
		if !seen[abs] {
			seen[abs] = true
			out = append(out, abs)
		}
	})
	return out, nil
}

func sameHost(a, b *url.URL) bool {
	return strings.EqualFold(a.Hostname(), b.Hostname())
}
