package domain

import "strings"

const (
	HelperFirst = "first"
	HelperLast  = "last"
	HelperAll   = "all"
	HelperEmail = "email"
	HelperPhone = "phone"
)

// BuiltinHelpers returns a fresh map of the default helper set.
func BuiltinHelpers() map[string]HelperFunc {
	return map[string]HelperFunc{
		HelperFirst: MaskFirstSegment,
		HelperLast:  MaskLastSegment,
		HelperAll:   MaskAll,
		HelperEmail: MaskEmail,
		HelperPhone: MaskPhone,
	}
}

// MaskFirstSegment masks the text before the first separator. Without a
// separator the whole value is masked.
func MaskFirstSegment(value string, cfg *MaskConfig) string {
	sep := cfg.Separator()
	if sep == "" {
		return cfg.MaskString(value)
	}
	head, rest, found := strings.Cut(value, sep)
	if !found {
		return cfg.MaskString(value)
	}
	return cfg.MaskString(head) + sep + rest
}

// MaskLastSegment masks the text after the last separator.
func MaskLastSegment(value string, cfg *MaskConfig) string {
	sep := cfg.Separator()
	if sep == "" {
		return cfg.MaskString(value)
	}
	i := strings.LastIndex(value, sep)
	if i < 0 {
		return cfg.MaskString(value)
	}
	return value[:i+len(sep)] + cfg.MaskString(value[i+len(sep):])
}

func MaskAll(value string, cfg *MaskConfig) string {
	return cfg.MaskString(value)
}

// MaskEmail masks the local part and keeps everything after the first '@'.
// A value with no domain is masked entirely.
func MaskEmail(value string, cfg *MaskConfig) string {
	local, domain, found := strings.Cut(value, "@")
	if !found || domain == "" {
		return cfg.MaskString(value)
	}
	return cfg.MaskString(local) + "@" + domain
}

// MaskPhone drops non-digits and keeps the last four digits.
func MaskPhone(value string, cfg *MaskConfig) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, value)
	n := len(digits)
	if n <= 4 {
		return digits
	}
	return cfg.Repeat(n-4) + digits[n-4:]
}
