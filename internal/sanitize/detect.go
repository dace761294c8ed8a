package sanitize

import "regexp"

type threatPattern struct {
	name string
	re   *regexp.Regexp
}

var threatPatterns = []threatPattern{
	{"script_tag", regexp.MustCompile(`(?i)<\s*/?\s*script\b`)},
	{"iframe_tag", regexp.MustCompile(`(?i)<\s*/?\s*i?frame\b`)},
	{"object_tag", regexp.MustCompile(`(?i)<\s*/?\s*(object|embed|applet)\b`)},
	{"meta_or_link_tag", regexp.MustCompile(`(?i)<\s*(meta|link|base)\b`)},
	{"form_tag", regexp.MustCompile(`(?i)<\s*/?\s*form\b`)},
	// Only inside a tag, so prose like "online = 24/7" is not a handler.
	{"event_handler", regexp.MustCompile(`(?i)<[^>]*\bon[a-z]+\s*=`)},
	{"javascript_url", regexp.MustCompile(`(?i)javascript\s*:`)},
	{"vbscript_url", regexp.MustCompile(`(?i)vbscript\s*:`)},
	{"html_data_url", regexp.MustCompile(`(?i)data\s*:\s*text/html`)},
	{"css_expression", regexp.MustCompile(`(?i)expression\s*\(`)},
	{"svg_tag", regexp.MustCompile(`(?i)<\s*svg\b`)},
}

// DetectThreats names every dangerous pattern found in s, in a stable order.
func DetectThreats(s string) []string {
	var found []string
	for _, p := range threatPatterns {
		if p.re.MatchString(s) {
			found = append(found, p.name)
		}
	}
	return found
}

// ContainsDangerousContent reports whether s matches any threat pattern.
func ContainsDangerousContent(s string) bool {
	for _, p := range threatPatterns {
		if p.re.MatchString(s) {
			return true
		}
	}
	return false
}
