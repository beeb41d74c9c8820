package article

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"newslens/internal/domain"
)

// MinTextChars is the smallest raw_text accepted for ingestion. Anything
// shorter is treated as a failed extraction, not an article.
const MinTextChars = 120

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize converts externally-extracted article fields into a record
// draft with a stable fingerprint. Pure function, no I/O.
func Normalize(rawURL, headline, rawText string) (domain.ArticleRecord, error) {
	text := strings.TrimSpace(rawText)
	if len(text) < MinTextChars {
		return domain.ArticleRecord{}, fmt.Errorf("%w: %d chars (min %d)", domain.ErrTextTooShort, len(text), MinTextChars)
	}
	return domain.ArticleRecord{
		Fingerprint: Fingerprint(rawURL, text),
		URL:         strings.TrimSpace(rawURL),
		Headline:    strings.TrimSpace(headline),
		RawText:     text,
	}, nil
}

// Fingerprint returns the identity key for an article: a sha256 over the
// canonicalized URL, or over the normalized text when no URL is available.
func Fingerprint(rawURL, rawText string) string {
	if canonical, ok := CanonicalURL(rawURL); ok {
		return hashString(canonical)
	}
	return hashString(normalizeText(rawText))
}

// CanonicalURL reduces trivially-different URLs to one form: scheme and
// host lower-cased, default ports dropped, query string and fragment
// stripped, trailing slash trimmed. Returns false for unusable input.
func CanonicalURL(rawURL string) (string, bool) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	path := strings.TrimSuffix(u.Path, "/")
	return scheme + "://" + host + path, true
}

func normalizeText(text string) string {
	return whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), " ")
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}
