package validator

import (
	"net/mail"
	"strings"
)

// ValidEmail accepts a bare RFC 5322 address whose domain has at least one
// dot. Display-name forms such as "Reader <a@b.co>" are rejected.
func ValidEmail(field, value string) Rule {
	return Rule{
		Check: func() bool {
			if strings.TrimSpace(value) == "" {
				return false
			}
			addr, err := mail.ParseAddress(value)
			if err != nil || addr.Address != value {
				return false
			}

			local, domain, ok := strings.Cut(addr.Address, "@")
			if !ok || local == "" {
				return false
			}
			if !strings.Contains(domain, ".") {
				return false
			}
			for part := range strings.SplitSeq(domain, ".") {
				if part == "" {
					return false
				}
			}
			return true
		},
		Error: ValidationError{
			Field:   field,
			Code:    "email",
			Message: "must be a valid email address",
		},
	}
}
