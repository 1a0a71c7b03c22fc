package logger

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// Key fragments that mark an attribute as secret.
var sensitiveKeyPatterns = []string{
	"passphrase",
	"password",
	"secret",
	"token",
	"api_key",
	"apikey",
	"credential",
	"auth",
	"bearer",
}

const redactedValue = "***REDACTED***"

// ParamsKey is the attribute carrying SQL bind values. They are user
// data, so only their count is logged.
const ParamsKey = "params"

// redactSensitive hides secret attribute values. Values under a sensitive
// key are replaced; URLs carrying a password have it masked.
func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		strVal := a.Value.String()
		if strVal == "" {
			return a
		}
		if IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
		if masked, ok := redactURL(strVal); ok {
			return slog.String(a.Key, masked)
		}

	case slog.KindAny:
		if a.Key == ParamsKey {
			if vs, ok := a.Value.Any().([]any); ok {
				return slog.String(a.Key, fmt.Sprintf("[%d values]", len(vs)))
			}
		}

	case slog.KindGroup:
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	return a
}

// redactURL masks the password of a URL with user info.
func redactURL(value string) (string, bool) {
	if !strings.Contains(value, "@") || !strings.Contains(value, "://") {
		return "", false
	}
	u, err := url.Parse(value)
	if err != nil || u.User == nil {
		return "", false
	}
	if _, hasPassword := u.User.Password(); !hasPassword {
		return "", false
	}
	return u.Redacted(), true
}

// RedactString masks a value before it is embedded in free text.
func RedactString(value string) string {
	if masked, ok := redactURL(value); ok {
		return masked
	}
	return value
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}
