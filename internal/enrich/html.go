package enrich

import (
	"bytes"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

var (
	errNoIconLink = errors.New("no icon link in page")
	errNoTitle    = errors.New("no title in page")
)

// parseHTML decodes body using the declared or detected charset and parses
// it. Undecodable input degrades to lossy UTF-8.
func parseHTML(body []byte, contentType string) (*goquery.Document, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		r = strings.NewReader(strings.ToValidUTF8(string(body), "\uFFFD"))
	}
	return goquery.NewDocumentFromReader(r)
}

// iconLink returns the href of the first <link> whose rel mentions "icon",
// resolved against base.
func iconLink(doc *goquery.Document, base *url.URL) (string, error) {
	var href string
	doc.Find("link[rel][href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel, _ := s.Attr("rel")
		if !strings.Contains(strings.ToLower(rel), "icon") {
			return true
		}
		href, _ = s.Attr("href")
		href = strings.TrimSpace(href)
		return href == ""
	})
	if href == "" {
		return "", errNoIconLink
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// pageTitle returns the trimmed text of the first <title>.
func pageTitle(doc *goquery.Document) (string, error) {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		return "", errNoTitle
	}
	return strings.ToValidUTF8(title, "\uFFFD"), nil
}
