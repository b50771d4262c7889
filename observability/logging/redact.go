package logging

import (
	"log/slog"
	"net/url"
	"strings"
)

// RedactedValue replaces sensitive values in log output.
const RedactedValue = "[REDACTED]"

// Keys that describe swaps and tokens. They are never masked even when a
// sensitive fragment such as "token" appears in them.
var swapKeys = map[string]struct{}{
	"token":      {},
	"from_token": {},
	"to_token":   {},
	"pair":       {},
	"swap_id":    {},
	"sequence":   {},
	"caller":     {},
	"payer":      {},
	"recipient":  {},
	"address":    {},
	"operation":  {},
	"kind":       {},
	"error":      {},
}

var sensitiveFragments = []string{
	"secret",
	"password",
	"passwd",
	"api_key",
	"apikey",
	"authorization",
	"bearer",
	"jwt",
	"private_key",
	"token",
}

// Keys whose values may carry credentials in URL userinfo.
var locatorKeys = map[string]struct{}{
	"dsn":      {},
	"url":      {},
	"endpoint": {},
	"addr":     {},
	"brokers":  {},
}

func normalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.ReplaceAll(key, "-", "_")
}

// IsSensitive reports whether values logged under key must be masked.
func IsSensitive(key string) bool {
	key = normalizeKey(key)
	if _, ok := swapKeys[key]; ok {
		return false
	}
	for _, fragment := range sensitiveFragments {
		if strings.Contains(key, fragment) {
			return true
		}
	}
	return false
}

// MaskValue returns RedactedValue for non-empty values and leaves blanks as is.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskField builds a string attribute, masking the value when key is sensitive.
func MaskField(key, value string) slog.Attr {
	if IsSensitive(key) {
		return slog.String(key, MaskValue(value))
	}
	return slog.String(key, value)
}

// StripCredentials drops the password from URL-shaped values such as
// postgres or redis DSNs. Other values are returned untouched.
func StripCredentials(value string) string {
	if !strings.Contains(value, "://") {
		return value
	}
	parsed, err := url.Parse(value)
	if err != nil || parsed.User == nil {
		return value
	}
	if _, ok := parsed.User.Password(); !ok {
		return value
	}
	return parsed.Redacted()
}

// redactAttr is applied to every attribute the service logs.
func redactAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() == slog.KindGroup {
		return attr
	}
	if IsSensitive(attr.Key) {
		return slog.String(attr.Key, MaskValue(attr.Value.String()))
	}
	if _, ok := locatorKeys[normalizeKey(attr.Key)]; ok && attr.Value.Kind() == slog.KindString {
		return slog.String(attr.Key, StripCredentials(attr.Value.String()))
	}
	return attr
}
