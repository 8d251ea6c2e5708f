package detection

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// spaceClass is what a \s in a detector rule stands for: ASCII whitespace plus vertical
// tab, the Unicode separator categories and the byte order mark
const spaceClass = `\s\v\p{Z}\x{FEFF}`

var (
	separatorPattern = pattern(`[-\s]`)
	nonDigitPattern  = regexp.MustCompile(`\D`)
)

// registry is evaluated in this order; match order in a Result follows it
var registry = []Detector{
	{
		Name:     "ssn",
		Type:     "Social Security Number",
		Category: CategoryPII,
		Severity: SeverityCritical,
		Pattern:  pattern(`\b\d{3}-\d{2}-\d{4}\b`),
		Mask: func(v string) string {
			return "XXX-XX-" + lastN(v, 4)
		},
	},
	{
		Name:     "credit_card",
		Type:     "Credit Card Number",
		Category: CategoryFinancial,
		Severity: SeverityCritical,
		Pattern:  pattern(`\b(?:\d{4}[-\s]?){3}\d{4}\b`),
		Mask: func(v string) string {
			return "**** **** **** " + lastN(separatorPattern.ReplaceAllString(v, ""), 4)
		},
	},
	{
		Name:     "email",
		Type:     "Email Address",
		Category: CategoryPII,
		Severity: SeverityMedium,
		Pattern:  pattern(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`),
		Mask: func(v string) string {
			local, domain, _ := strings.Cut(v, "@")
			return firstN(local, 1) + "***@" + domain
		},
	},
	{
		Name:     "phone",
		Type:     "Phone Number",
		Category: CategoryPII,
		Severity: SeverityMedium,
		Pattern:  pattern(`\b(?:\+1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`),
		Mask: func(v string) string {
			return "(***) ***-" + lastN(nonDigitPattern.ReplaceAllString(v, ""), 4)
		},
	},
	{
		Name:     "ip_address",
		Type:     "IP Address",
		Category: CategoryTechnical,
		Severity: SeverityLow,
		Pattern:  pattern(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
		Mask:     fixed("[IP REDACTED]"),
	},
	{
		Name:     "api_key",
		Type:     "API Key/Token",
		Category: CategorySecurity,
		Severity: SeverityCritical,
		Pattern:  pattern(`(?i)\b(?:api[_-]?key|apikey|api_secret|secret_key|access_token|auth_token)[:\s]*['"]?([a-zA-Z0-9_-]{20,})['"]?`),
		Mask:     fixed("[API_KEY_REDACTED]"),
	},
	{
		Name:     "password",
		Type:     "Password",
		Category: CategorySecurity,
		Severity: SeverityCritical,
		Pattern:  pattern(`(?i)\b(?:password|passwd|pwd)[:\s]*['"]?([^\s'"]{4,})['"]?`),
		Mask:     fixed("[PASSWORD_REDACTED]"),
	},
	{
		Name:     "date_of_birth",
		Type:     "Date of Birth",
		Category: CategoryPII,
		Severity: SeverityHigh,
		Pattern:  pattern(`(?i)\b(?:dob|date of birth|birth date|birthdate)[:\s]*(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})`),
		Mask:     fixed("[DOB_REDACTED]"),
	},
	{
		Name:     "medical_record",
		Type:     "Medical Record Number",
		Category: CategoryPHI,
		Severity: SeverityCritical,
		Pattern:  pattern(`(?i)\b(?:mrn|medical record|patient id|health id)[:\s#]*([a-zA-Z0-9-]{5,})`),
		Mask:     fixed("[MRN_REDACTED]"),
	},
	{
		Name:     "bank_account",
		Type:     "Bank Account Number",
		Category: CategoryFinancial,
		Severity: SeverityCritical,
		Pattern:  pattern(`(?i)\b(?:account|acct)[:\s#]*(\d{8,17})\b`),
		Mask:     fixed("[ACCOUNT_REDACTED]"),
	},
	{
		Name:     "address",
		Type:     "Physical Address",
		Category: CategoryPII,
		Severity: SeverityHigh,
		Pattern:  pattern(`(?i)\b\d{1,5}\s+[\w\s]+(?:street|st|avenue|ave|road|rd|boulevard|blvd|drive|dr|lane|ln|court|ct|way|circle|cir)\.?\s*,?\s*[\w\s]+,?\s*[A-Z]{2}\s*\d{5}(?:-\d{4})?\b`),
		Mask:     fixed("[ADDRESS_REDACTED]"),
	},
	{
		Name:     "confidential",
		Type:     "Confidential Information",
		Category: CategoryCorporate,
		Severity: SeverityHigh,
		Pattern:  pattern(`(?i)\b(?:confidential|proprietary|internal only|trade secret|classified)[:\s]*([\w\s]+)`),
		Mask: func(v string) string {
			return "[CONFIDENTIAL: " + firstN(v, 10) + "...]"
		},
	},
}

// Registry returns a copy of the built-in detectors in evaluation order
func Registry() []Detector {
	out := make([]Detector, len(registry))
	copy(out, registry)
	return out
}

// DetectorNames returns the configuration names of the built-in detectors
func DetectorNames() []string {
	names := make([]string, len(registry))
	for i, d := range registry {
		names[i] = d.Name
	}
	return names
}

// pattern compiles a detector rule with \s widened to spaceClass, inside and outside
// character classes
func pattern(expr string) *regexp.Regexp {
	var b strings.Builder
	inClass := false
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		switch {
		case c == '\\' && i+1 < len(expr):
			i++
			if expr[i] == 's' {
				if inClass {
					b.WriteString(spaceClass)
				} else {
					b.WriteString("[" + spaceClass + "]")
				}
				continue
			}
			b.WriteByte(c)
			b.WriteByte(expr[i])
		case c == '[' && !inClass:
			inClass = true
			b.WriteByte(c)
		case c == ']' && inClass:
			inClass = false
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return regexp.MustCompile(b.String())
}

func fixed(replacement string) func(string) string {
	return func(string) string { return replacement }
}

// lastN returns the last n runes of s
func lastN(s string, n int) string {
	count := utf8.RuneCountInString(s)
	if count <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[count-n:])
}

// firstN returns the first n runes of s
func firstN(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
