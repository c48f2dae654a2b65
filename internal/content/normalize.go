package content

import (
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Slugify lowercases s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// NormalizeImageURL makes raw absolute against base, upgrades http to
// https and appends a v query parameter derived from version so browsers
// refetch the image after it changes. Unusable URLs yield "".
func NormalizeImageURL(raw, base string, version time.Time) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	if !u.IsAbs() {
		if base == "" {
			return ""
		}
		b, err := url.Parse(base)
		if err != nil || !b.IsAbs() {
			return ""
		}
		u = b.ResolveReference(u)
	}

	switch u.Scheme {
	case "https":
	case "http":
		u.Scheme = "https"
	default:
		return ""
	}

	if !version.IsZero() {
		q := u.Query()
		q.Set("v", strconv.FormatInt(version.Unix(), 10))
		u.RawQuery = q.Encode()
	}
	return u.String()
}
