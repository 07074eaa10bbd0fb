// Package sanitizer normalizes user input before it is stored or compared.
package sanitizer

import "strings"

// NormalizeEmail trims and lowercases an address so that lookups are
// case-insensitive. Inputs that are not of the form local@domain are
// returned trimmed and lowercased but otherwise untouched.
func NormalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))

	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return email
	}
	return local + "@" + strings.TrimSuffix(domain, ".")
}

// MaskEmail keeps the first character of the local part and the full
// domain, for logs: "reader@example.com" becomes "r*****@example.com".
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok || local == "" {
		return "***"
	}
	r := []rune(local)
	return string(r[0]) + strings.Repeat("*", len(r)-1) + "@" + domain
}

// CollapseSpace trims s and replaces internal runs of whitespace with a
// single space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
