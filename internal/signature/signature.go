// Package signature renders email signature templates for directory users.
package signature

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"sigdesk.app/server/internal/model"
	"sigdesk.app/server/internal/sanitize"
)

var ErrUnknownPlaceholder = errors.New("unknown placeholder")

// Supported placeholder tokens, in the order they are documented to users.
const (
	Name       = "name"
	FirstName  = "first_name"
	LastName   = "last_name"
	Title      = "title"
	Department = "department"
	Company    = "company"
	Email      = "email"
	Phone      = "phone"
	Mobile     = "mobile"
	Office     = "office"
	Website    = "website"
)

var supported = []string{Name, FirstName, LastName, Title, Department, Company, Email, Phone, Mobile, Office, Website}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// markerPrefix stands in for a placeholder while a template is sanitized. It is
// an absolute https URL on a reserved host so the URL policy keeps it verbatim
// in href and src values as well as in text. The token is closed by a slash.
const markerPrefix = "https://placeholder.sigdesk.invalid/"

var markerPattern = regexp.MustCompile(regexp.QuoteMeta(markerPrefix) + `([a-z_][a-z0-9_]*)/`)

// telHref matches a tel: or sms: scheme ending right where a placeholder starts.
var telHref = regexp.MustCompile(`(?i)(?:tel|sms):\s*$`)

// Fields are the per-user values substituted into a template.
type Fields struct {
	Name       string
	FirstName  string
	LastName   string
	Title      string
	Department string
	Company    string
	Email      string
	Phone      string
	Mobile     string
	Office     string
	Website    string
}

func (f Fields) lookup(token string) string {
	switch token {
	case Name:
		if f.Name != "" {
			return f.Name
		}
		return strings.TrimSpace(f.FirstName + " " + f.LastName)
	case FirstName:
		return f.FirstName
	case LastName:
		return f.LastName
	case Title:
		return f.Title
	case Department:
		return f.Department
	case Company:
		return f.Company
	case Email:
		return f.Email
	case Phone:
		return f.Phone
	case Mobile:
		return f.Mobile
	case Office:
		return f.Office
	case Website:
		if u, ok := sanitize.URL(f.Website); ok {
			return u
		}
		return ""
	}
	return ""
}

// FieldsFor maps a synced directory user onto template fields. company and
// website fill in organization-level values the directory does not carry.
func FieldsFor(u *model.DirectoryUser, company, website string) Fields {
	f := Fields{
		Name:       u.DisplayName,
		FirstName:  u.GivenName,
		LastName:   u.Surname,
		Title:      u.JobTitle,
		Department: u.Department,
		Company:    u.CompanyName,
		Email:      u.PrimaryEmail(),
		Phone:      u.BusinessPhone,
		Mobile:     u.MobilePhone,
		Office:     u.OfficeLocation,
		Website:    website,
	}
	if f.Company == "" {
		f.Company = company
	}
	return f
}

// Supported returns the placeholder tokens templates may use.
func Supported() []string {
	return append([]string(nil), supported...)
}

func IsSupported(token string) bool {
	for _, s := range supported {
		if s == token {
			return true
		}
	}
	return false
}

// Placeholders returns the distinct tokens used in html, lowercased, in order
// of first appearance.
func Placeholders(html string) []string {
	var tokens []string
	seen := map[string]bool{}
	for _, m := range placeholderPattern.FindAllStringSubmatch(html, -1) {
		token := strings.ToLower(m[1])
		if seen[token] {
			continue
		}
		seen[token] = true
		tokens = append(tokens, token)
	}
	return tokens
}

// Unknown returns the tokens in html that are not supported.
func Unknown(html string) []string {
	var unknown []string
	for _, token := range Placeholders(html) {
		if !IsSupported(token) {
			unknown = append(unknown, token)
		}
	}
	return unknown
}

// Sanitize cleans template markup with the signature policy while keeping
// every placeholder, including ones inside URL attributes, intact.
func Sanitize(tpl string) string {
	masked := placeholderPattern.ReplaceAllStringFunc(tpl, func(m string) string {
		return markerPrefix + strings.ToLower(placeholderPattern.FindStringSubmatch(m)[1]) + "/"
	})
	return markerPattern.ReplaceAllString(sanitize.HTML(masked), "{{$1}}")
}

// Render substitutes every placeholder with its HTML-escaped value and
// sanitizes the result. Missing values render as empty strings. Values that
// follow a tel: or sms: scheme are reduced to dialable characters.
func Render(tpl string, f Fields) (string, error) {
	if unknown := Unknown(tpl); len(unknown) > 0 {
		return "", fmt.Errorf("%w: %s", ErrUnknownPlaceholder, strings.Join(unknown, ", "))
	}

	var b strings.Builder
	last := 0
	for _, m := range placeholderPattern.FindAllStringSubmatchIndex(tpl, -1) {
		b.WriteString(tpl[last:m[0]])
		value := f.lookup(strings.ToLower(tpl[m[2]:m[3]]))
		if telHref.MatchString(tpl[last:m[0]]) {
			value = Dialable(value)
		}
		b.WriteString(sanitize.EscapeHTML(value))
		last = m[1]
	}
	b.WriteString(tpl[last:])
	return sanitize.HTML(b.String()), nil
}

// Dialable keeps the digits of a phone number and a leading plus sign, the
// form tel: URLs need. Extensions and letters are dropped.
func Dialable(phone string) string {
	phone = strings.TrimSpace(phone)
	var b strings.Builder
	for i, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == 'x' || r == 'X' || r == ',' || r == ';':
			return b.String()
		}
	}
	return b.String()
}

// PreviewFields is sample data for rendering template previews.
func PreviewFields() Fields {
	return Fields{
		Name:       "Jane Doe",
		FirstName:  "Jane",
		LastName:   "Doe",
		Title:      "Head of Sales",
		Department: "Sales",
		Company:    "Contoso Ltd",
		Email:      "jane.doe@contoso.com",
		Phone:      "+1 555 0100",
		Mobile:     "+1 555 0101",
		Office:     "Seattle",
		Website:    "https://www.contoso.com",
	}
}
