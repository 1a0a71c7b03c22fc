package config

import "strings"

// Sanitize returns a copy of the config with sensitive fields masked.
//
// This is used for logging configuration without exposing secrets.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg

	if sanitized.Snapshot.Passphrase != "" {
		sanitized.Snapshot.Passphrase = maskSecret(sanitized.Snapshot.Passphrase)
	}
	if u := sanitized.Intercept.Upstream; strings.Contains(u, "@") {
		sanitized.Intercept.Upstream = maskUserinfo(u)
	}
	if u := sanitized.Snapshot.BaseURL; strings.Contains(u, "@") {
		sanitized.Snapshot.BaseURL = maskUserinfo(u)
	}

	// Slices are shared by the shallow copy
	sanitized.Server.AllowList = append([]string(nil), cfg.Server.AllowList...)
	sanitized.Policy.DeniedTables = append([]string(nil), cfg.Policy.DeniedTables...)

	return &sanitized
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

// maskUserinfo hides credentials embedded in a URL.
func maskUserinfo(raw string) string {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return raw
	}
	at := strings.LastIndex(rest, "@")
	slash := strings.Index(rest, "/")
	if at < 0 || (slash >= 0 && at > slash) {
		return raw
	}
	return scheme + "://****@" + rest[at+1:]
}
