// Package parser turns Know Your Meme listing markup into entries.
//
// Everything here is a pure function of the HTML it is given, so markup changes on the
// site only require updating this package and its fixtures.
package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-kym/models"
)

// UnknownTitle is used when no title can be derived for an entry link.
const UnknownTitle = "Unknown Meme"

// EntrySelector matches candidate entry links on the listing page.
const EntrySelector = "a[href*='/memes/']"

const containerSelector = ".item, article, td, li"

var (
	pageSegment = regexp.MustCompile(`/page/\d+`)
	pageQuery   = regexp.MustCompile(`[?&]page=\d+`)

	// Listing sections that live under /memes/ but are not entries.
	sectionSlugs = map[string]struct{}{
		"new":       {},
		"trending":  {},
		"confirmed": {},
	}
)

// ParseError reports markup that could not be read as a listing.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse listing: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseListing extracts entries in document order. Relative links and thumbnails are
// resolved against baseURL. A page with no recognisable entries yields an empty slice.
func ParseListing(html, baseURL string) ([]models.Entry, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("base url: %w", err)}
	}
	if base.Host == "" {
		return nil, &ParseError{Err: fmt.Errorf("base url %q has no host", baseURL)}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	entries := make([]models.Entry, 0)
	index := make(map[string]int)
	guessed := make([]bool, 0)

	doc.Find(EntrySelector).Each(func(_ int, link *goquery.Selection) {
		ref, ok := entryRef(link.AttrOr("href", ""), base)
		if !ok {
			return
		}
		fullURL := base.ResolveReference(ref).String()

		title, fromSlug := extractTitle(link, ref.Path)
		if isDigits(title) {
			return
		}

		container := link.Closest(containerSelector)
		thumb := extractThumbnail(link, container, base)

		if i, dup := index[fullURL]; dup {
			// Listings often repeat a link for the image and the caption.
			if entries[i].ThumbnailURL == "" {
				entries[i].ThumbnailURL = thumb
			}
			if guessed[i] && !fromSlug {
				entries[i].Title = title
				guessed[i] = false
			}
			return
		}

		index[fullURL] = len(entries)
		guessed = append(guessed, fromSlug)
		entries = append(entries, models.Entry{
			Title:        title,
			URL:          fullURL,
			ThumbnailURL: thumb,
			Rank:         len(entries) + 1,
			Timestamp:    extractTimestamp(link, container),
		})
	})

	return entries, nil
}

// IsEntryPath reports whether a site-relative path (with optional query) names an entry page.
func IsEntryPath(rel string) bool {
	if !strings.HasPrefix(rel, "/memes/") {
		return false
	}
	if pageSegment.MatchString(rel) || pageQuery.MatchString(rel) || strings.Contains(rel, "/categories/") {
		return false
	}

	rest := strings.TrimPrefix(rel, "/memes/")
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return false
	}
	_, section := sectionSlugs[rest]
	return !section
}

// TitleFromSlug derives a readable title from the last path segment of an entry URL.
func TitleFromSlug(path string) string {
	path = strings.TrimRight(path, "/")
	slug := path[strings.LastIndex(path, "/")+1:]
	if unescaped, err := url.PathUnescape(slug); err == nil {
		slug = unescaped
	}

	words := strings.Fields(strings.ReplaceAll(slug, "-", " "))
	for i, w := range words {
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[:1])) + strings.ToLower(string(r[1:]))
	}
	return strings.Join(words, " ")
}

func entryRef(href string, base *url.URL) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return nil, false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}
	if ref.Host != "" && !strings.EqualFold(ref.Hostname(), base.Hostname()) {
		return nil, false
	}
	if ref.Scheme != "" && ref.Scheme != "http" && ref.Scheme != "https" {
		return nil, false
	}
	if !IsEntryPath(ref.RequestURI()) {
		return nil, false
	}
	ref.Fragment = ""
	ref.RawFragment = ""
	return ref, true
}

// extractTitle walks the fallback chain and reports whether the slug had to be used.
func extractTitle(link *goquery.Selection, path string) (string, bool) {
	candidates := []string{
		link.AttrOr("alt", ""),
		link.AttrOr("title", ""),
		link.AttrOr("data-author", ""),
		collapseSpace(link.Text()),
		link.Find("img").First().AttrOr("alt", ""),
	}
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c, false
		}
	}
	if slug := TitleFromSlug(path); slug != "" {
		return slug, true
	}
	return UnknownTitle, true
}

func extractThumbnail(link, container *goquery.Selection, base *url.URL) string {
	for _, scope := range []*goquery.Selection{link, container} {
		img := scope.Find("img").First()
		if img.Length() == 0 {
			continue
		}
		src := strings.TrimSpace(img.AttrOr("data-src", ""))
		if src == "" {
			src = strings.TrimSpace(img.AttrOr("src", ""))
		}
		if src == "" || strings.HasPrefix(src, "data:") {
			continue
		}
		ref, err := url.Parse(src)
		if err != nil {
			continue
		}
		return base.ResolveReference(ref).String()
	}
	return ""
}

func extractTimestamp(link, container *goquery.Selection) string {
	if ts := strings.TrimSpace(container.Find("time").First().AttrOr("datetime", "")); ts != "" {
		return ts
	}
	if ts := strings.TrimSpace(link.AttrOr("data-timestamp", "")); ts != "" {
		return ts
	}
	return strings.TrimSpace(container.AttrOr("data-timestamp", ""))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
