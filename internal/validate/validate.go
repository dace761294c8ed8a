// Package validate checks user input before it reaches services or storage.
//
// Struct validation goes through go-playground/validator using the "binding"
// tag, so the same rules apply whether a DTO is bound by gin or validated
// directly. Custom tags:
//
//	tenant_id, client_id  canonical Azure GUID
//	slug                  lowercase hyphenated slug
//	safe_text             no script-like content
//	placeholders          only supported {{tokens}}
//	hex_color             #rgb or #rrggbb
package validate

import (
	"errors"
	"fmt"
	"net/mail"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"sigdesk.app/server/common"
	"sigdesk.app/server/internal/sanitize"
	"sigdesk.app/server/internal/signature"
)

const (
	MaxNameLength      = 100
	MaxEmailLength     = 254
	MaxTemplateBytes   = 50 * 1024
	MaxDescriptionSize = 500
)

var (
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrInvalidGUID     = errors.New("must be a GUID")
	ErrInvalidName     = errors.New("invalid name")
	ErrInvalidSlug     = errors.New("invalid slug")
	ErrInvalidURL      = errors.New("must be an http or https URL")
	ErrInvalidTemplate = errors.New("invalid template")
	ErrInvalidDomain   = errors.New("invalid domain")
)

var hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

var defaultValidator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	if err := Register(v); err != nil {
		panic(err)
	}
	return v
})

// Register adds the custom tags and JSON field naming to v.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(jsonFieldName)

	tags := map[string]validator.Func{
		"tenant_id":    isGUID,
		"client_id":    isGUID,
		"slug":         isSlug,
		"safe_text":    isSafeText,
		"placeholders": hasKnownPlaceholders,
		"hex_color":    isHexColor,
	}
	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("registering %s: %w", tag, err)
		}
	}
	return nil
}

// RegisterGinValidators installs the custom tags on gin's binding engine.
func RegisterGinValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding engine is not go-playground/validator")
	}
	return Register(v)
}

// Struct validates s against its binding tags.
func Struct(s any) error {
	return defaultValidator().Struct(s)
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		name, _, _ = strings.Cut(fld.Tag.Get("form"), ",")
	}
	if name == "" {
		return fld.Name
	}
	return name
}

func isGUID(fl validator.FieldLevel) bool {
	return validGUID(fl.Field().String())
}

func isSlug(fl validator.FieldLevel) bool {
	return common.IsSlug(fl.Field().String())
}

func isSafeText(fl validator.FieldLevel) bool {
	return !sanitize.ContainsDangerousContent(fl.Field().String())
}

func hasKnownPlaceholders(fl validator.FieldLevel) bool {
	return len(signature.Unknown(fl.Field().String())) == 0
}

func isHexColor(fl validator.FieldLevel) bool {
	return hexColorPattern.MatchString(fl.Field().String())
}

// validGUID accepts only the hyphenated 36-character form Azure shows in the
// portal; uuid.Parse alone also takes braces and urn prefixes.
func validGUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// Email returns the normalized (trimmed, lowercased) address.
func Email(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || len(s) > MaxEmailLength {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return "", ErrInvalidEmail
	}
	local, domain, ok := strings.Cut(s, "@")
	if !ok || local == "" || !strings.Contains(domain, ".") {
		return "", ErrInvalidEmail
	}
	return s, nil
}

// TenantID returns the lowercased GUID.
func TenantID(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !validGUID(s) {
		return "", fmt.Errorf("tenant id %w", ErrInvalidGUID)
	}
	return s, nil
}

// ClientID returns the lowercased GUID.
func ClientID(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !validGUID(s) {
		return "", fmt.Errorf("client id %w", ErrInvalidGUID)
	}
	return s, nil
}

// Name accepts 1..MaxNameLength printable characters with no markup.
func Name(s string) (string, error) {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return "", fmt.Errorf("%w: required", ErrInvalidName)
	}
	if n > MaxNameLength {
		return "", fmt.Errorf("%w: at most %d characters", ErrInvalidName, MaxNameLength)
	}
	for _, r := range s {
		if !unicode.IsPrint(r) || r == '<' || r == '>' {
			return "", fmt.Errorf("%w: contains disallowed characters", ErrInvalidName)
		}
	}
	if sanitize.ContainsDangerousContent(s) {
		return "", fmt.Errorf("%w: contains disallowed content", ErrInvalidName)
	}
	return s, nil
}

func Slug(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !common.IsSlug(s) {
		return "", ErrInvalidSlug
	}
	return s, nil
}

// Domain accepts a bare DNS name such as "contoso.com", tolerating a leading
// "@" as users often paste it from an address.
func Domain(s string) (string, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "@")
	if s == "" || defaultValidator().Var(s, "fqdn") != nil {
		return "", ErrInvalidDomain
	}
	return s, nil
}

// URL accepts absolute http(s) URLs only.
func URL(s string) (string, error) {
	u, ok := sanitize.URL(s)
	if !ok {
		return "", ErrInvalidURL
	}
	lower := strings.ToLower(u)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return "", ErrInvalidURL
	}
	return u, nil
}

// TemplateContent checks size and placeholders of raw template HTML.
func TemplateContent(html string) error {
	if strings.TrimSpace(html) == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidTemplate)
	}
	if len(html) > MaxTemplateBytes {
		return fmt.Errorf("%w: content exceeds %d bytes", ErrInvalidTemplate, MaxTemplateBytes)
	}
	if unknown := signature.Unknown(html); len(unknown) > 0 {
		return fmt.Errorf("%w: unknown placeholders: %s", ErrInvalidTemplate, strings.Join(unknown, ", "))
	}
	return nil
}

// Errors turns a validation failure into field → message pairs for a 400
// response. Non-validation errors map to a single "body" entry.
func Errors(err error) map[string]string {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"body": "invalid request body"}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "fqdn":
		return "must be a domain name such as contoso.com"
	case "url", "http_url":
		return ErrInvalidURL.Error()
	case "tenant_id", "client_id":
		return ErrInvalidGUID.Error()
	case "slug":
		return "must contain only lowercase letters, digits and single hyphens"
	case "safe_text":
		return "contains disallowed content"
	case "placeholders":
		return "contains unknown placeholders"
	case "hex_color":
		return "must be a hex color such as #1a2b3c"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
