// Package mapbox translates mapbox:// locators into Mapbox REST API URLs and
// prepares fetched Mapbox styles for rendering outside Mapbox GL.
package mapbox

import (
	"net/url"
	"strings"
)

const (
	// Scheme is the prefix of Mapbox short-form locators.
	Scheme = "mapbox://"

	// APIHost is the host of the Mapbox REST API.
	APIHost = "api.mapbox.com"

	apiBase = "https://" + APIHost

	stylesPrefix  = Scheme + "styles/"
	spritesPrefix = Scheme + "sprites/"
	fontsPrefix   = Scheme + "fonts/"

	accessTokenParam = "access_token"
)

// IsMapboxURL reports whether u uses the mapbox:// scheme.
func IsMapboxURL(u string) bool {
	return strings.HasPrefix(u, Scheme)
}

// IsAPIURL reports whether u already targets the Mapbox REST API host.
func IsAPIURL(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	return parsed.Scheme == "https" && parsed.Host == APIHost
}

// NormalizeStyleURL rewrites mapbox://styles/<owner>/<id> to the Styles API.
func NormalizeStyleURL(u string) string {
	if !strings.HasPrefix(u, stylesPrefix) {
		return u
	}
	path, query := splitQuery(strings.TrimPrefix(u, stylesPrefix))
	return apiBase + "/styles/v1/" + path + query
}

// NormalizeSpriteURL rewrites mapbox://sprites/<owner>/<id> to the sprite
// endpoint of the Styles API.
func NormalizeSpriteURL(u string) string {
	if !strings.HasPrefix(u, spritesPrefix) {
		return u
	}
	path, query := splitQuery(strings.TrimPrefix(u, spritesPrefix))
	return apiBase + "/styles/v1/" + path + "/sprite" + query
}

// NormalizeGlyphsURL rewrites mapbox://fonts/<owner>/<fontstack>/<range>.pbf
// to the Fonts API. Segments holding {placeholders} are kept verbatim, all
// others are percent-encoded so font names with spaces survive.
func NormalizeGlyphsURL(u string) string {
	if !strings.HasPrefix(u, fontsPrefix) {
		return u
	}
	path, query := splitQuery(strings.TrimPrefix(u, fontsPrefix))

	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if isPlaceholder(seg) {
			continue
		}
		segments[i] = url.PathEscape(seg)
	}
	return apiBase + "/fonts/v1/" + strings.Join(segments, "/") + query
}

// NormalizeSourceURL rewrites a mapbox://<tileset ids> source to its TileJSON
// endpoint with secure=true. Existing query parameters are preserved in order.
func NormalizeSourceURL(u string) string {
	if !IsMapboxURL(u) {
		return u
	}
	path, query := splitQuery(strings.TrimPrefix(u, Scheme))
	if !strings.HasSuffix(path, ".json") {
		path += ".json"
	}

	raw := strings.TrimPrefix(query, "?")
	if !hasParam(raw, "secure") {
		raw = joinQuery(raw, "secure=true")
	}
	return apiBase + "/v4/" + path + "?" + raw
}

// AppendAccessToken adds access_token=<token> to u. It is a no-op when u
// already carries an access_token parameter or the token is blank.
func AppendAccessToken(u, token string) string {
	if strings.TrimSpace(token) == "" {
		return u
	}
	_, query := splitQuery(u)
	if hasParam(strings.TrimPrefix(query, "?"), accessTokenParam) {
		return u
	}

	sep := "?"
	if query != "" {
		sep = "&"
		if query == "?" {
			sep = ""
		}
	}
	return u + sep + accessTokenParam + "=" + url.QueryEscape(token)
}

// splitQuery splits s into the part before '?' and the query including '?'.
func splitQuery(s string) (string, string) {
	if i := strings.IndexByte(s, '?'); i >= 0 {
		return s[:i], s[i:]
	}
	return s, ""
}

// hasParam reports whether the raw query string carries name as a key.
// Parsing is done pair by pair so malformed escapes elsewhere do not hide it.
func hasParam(rawQuery, name string) bool {
	if rawQuery == "" {
		return false
	}
	for _, pair := range strings.Split(rawQuery, "&") {
		key, _, _ := strings.Cut(pair, "=")
		if unescaped, err := url.QueryUnescape(key); err == nil {
			key = unescaped
		}
		if key == name {
			return true
		}
	}
	return false
}

func joinQuery(rawQuery, pair string) string {
	if rawQuery == "" {
		return pair
	}
	if strings.HasSuffix(rawQuery, "&") {
		return rawQuery + pair
	}
	return rawQuery + "&" + pair
}

func isPlaceholder(seg string) bool {
	open := strings.IndexByte(seg, '{')
	return open >= 0 && strings.IndexByte(seg[open:], '}') > 0
}

// RedactToken masks the access_token value of u for logs and errors.
func RedactToken(u string) string {
	path, query := splitQuery(u)
	if query == "" {
		return u
	}
	pairs := strings.Split(strings.TrimPrefix(query, "?"), "&")
	for i, pair := range pairs {
		if key, _, ok := strings.Cut(pair, "="); ok && key == accessTokenParam {
			pairs[i] = key + "=REDACTED"
		}
	}
	return path + "?" + strings.Join(pairs, "&")
}
