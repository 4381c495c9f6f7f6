package utils

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	// MinPasswordLength is exclusive: passwords must be longer than this.
	MinPasswordLength = 6
	MinNameLength     = 3
)

var (
	// Word-character local part and domain, 2-3 letter final label (e.g. .edu).
	emailShapeRegex = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)

	validate = validator.New()
)

// ValidateEmailFormat reports whether email is a well formed address that belongs to domain
// (either directly, user@domain, or through a subdomain, user@dept.domain).
func ValidateEmailFormat(email, domain string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	if validate.Var(email, "required,email") != nil {
		return false
	}
	if !emailShapeRegex.MatchString(email) {
		return false
	}
	domain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(domain), "@"))
	if domain == "" {
		return true
	}
	lower := strings.ToLower(email)
	return strings.HasSuffix(lower, "@"+domain) || strings.HasSuffix(lower, "."+domain)
}

// ValidatePasswordPolicy only enforces a minimum length.
func ValidatePasswordPolicy(password string) bool {
	return utf8.RuneCountInString(password) > MinPasswordLength
}

// ValidateNameFormat requires both names to have at least MinNameLength characters
// and no whitespace anywhere in either of them.
func ValidateNameFormat(first, last string) bool {
	if utf8.RuneCountInString(first) < MinNameLength || utf8.RuneCountInString(last) < MinNameLength {
		return false
	}
	return !strings.ContainsFunc(first+last, unicode.IsSpace)
}

// NormalizeEmail converts an email to its case-insensitive lookup form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
