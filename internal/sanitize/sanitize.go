// Package sanitize removes executable content from user-supplied HTML and text.
//
// Signature HTML is cleaned with an allow-list policy: formatting, tables,
// images and links survive, while scripts, frames, embedded objects, forms,
// event handler attributes and non-web URL schemes are dropped.
package sanitize

import (
	"html"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var allowedURLSchemes = []string{"http", "https", "mailto", "tel"}

// signatureStyles are the inline CSS properties email clients render reliably.
var signatureStyles = []string{
	"color", "background-color",
	"font-family", "font-size", "font-weight", "font-style", "line-height",
	"text-align", "text-decoration", "vertical-align", "white-space",
	"margin", "margin-top", "margin-right", "margin-bottom", "margin-left",
	"padding", "padding-top", "padding-right", "padding-bottom", "padding-left",
	"border", "border-top", "border-right", "border-bottom", "border-left",
	"border-collapse", "border-radius",
	"width", "height", "max-width", "display",
}

var (
	signaturePolicy = sync.OnceValue(newSignaturePolicy)
	strictPolicy    = sync.OnceValue(bluemonday.StrictPolicy)
)

func newSignaturePolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.AllowStandardAttributes()
	p.AllowElements(
		"p", "br", "div", "span", "hr",
		"b", "strong", "i", "em", "u", "s", "small", "sup", "sub", "font",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "blockquote", "center",
	)
	p.AllowAttrs("color", "face", "size").OnElements("font")
	p.AllowAttrs("align").OnElements("p", "div", "h1", "h2", "h3", "h4", "h5", "h6", "center")

	p.AllowTables()
	p.AllowAttrs("width", "height", "align", "valign", "bgcolor", "border", "cellpadding", "cellspacing").
		OnElements("table", "tr", "td", "th", "tbody", "thead", "tfoot")
	p.AllowAttrs("colspan", "rowspan").Matching(bluemonday.Integer).OnElements("td", "th")

	p.AllowImages()
	p.AllowDataURIImages()
	p.AllowAttrs("width", "height", "border").OnElements("img")

	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("target").Matching(regexp.MustCompile(`^_blank$`)).OnElements("a")
	p.AllowURLSchemes(allowedURLSchemes...)
	p.RequireParseableURLs(true)
	p.RequireNoFollowOnLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowStyles(signatureStyles...).Globally()

	return p
}

// HTML cleans signature markup with the allow-list policy.
func HTML(s string) string {
	return signaturePolicy().Sanitize(s)
}

// Text strips all markup and returns plain text without angle brackets.
// Entities are decoded so "AT&amp;T" is stored as "AT&T"; callers must escape
// on output.
func Text(s string) string {
	stripped := html.UnescapeString(strictPolicy().Sanitize(s))
	stripped = strings.NewReplacer("<", "", ">", "").Replace(stripped)
	return strings.TrimSpace(stripped)
}

func EscapeHTML(s string) string {
	return html.EscapeString(s)
}

// URL returns the trimmed URL when it is absolute and uses an allowed scheme.
func URL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	for _, allowed := range allowedURLSchemes {
		if scheme != allowed {
			continue
		}
		if (scheme == "http" || scheme == "https") && u.Host == "" {
			return "", false
		}
		return raw, true
	}
	return "", false
}

// Value walks decoded JSON (maps, slices, strings) and text-sanitizes every
// string, including map keys. Other values are returned unchanged.
func Value(v any) any {
	switch t := v.(type) {
	case string:
		return Text(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[Text(k)] = Value(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Value(val)
		}
		return out
	case []string:
		out := make([]string, len(t))
		for i, val := range t {
			out[i] = Text(val)
		}
		return out
	default:
		return v
	}
}
