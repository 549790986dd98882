package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue replaces the value of any sensitive log field.
const RedactedValue = "[REDACTED]"

// sensitiveKeys are masked by the handler no matter how they are logged.
var sensitiveKeys = map[string]struct{}{
	"keypair":       {},
	"keypairpath":   {},
	"privatekey":    {},
	"secret":        {},
	"authorization": {},
	"headers":       {},
}

// IsSensitive reports whether values logged under key are masked. Matching
// ignores case, dashes and underscores.
func IsSensitive(key string) bool {
	normalized := strings.NewReplacer("-", "", "_", "").Replace(strings.ToLower(strings.TrimSpace(key)))
	_, ok := sensitiveKeys[normalized]
	return ok
}

// SensitiveKeys returns the masked keys in sorted order.
func SensitiveKeys() []string {
	keys := make([]string, 0, len(sensitiveKeys))
	for key := range sensitiveKeys {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskValue returns RedactedValue for non-empty values. Empty values pass
// through so missing settings stay visible.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskField builds an attribute whose value is always masked, for fields
// whose key alone does not mark them sensitive.
func MaskField(key, value string) slog.Attr {
	return slog.String(key, MaskValue(value))
}

// redactAttr masks sensitive attributes at any group depth. It runs inside
// the handler's ReplaceAttr.
func redactAttr(attr slog.Attr) slog.Attr {
	if !IsSensitive(attr.Key) {
		return attr
	}
	if attr.Value.Kind() == slog.KindString && attr.Value.String() == "" {
		return attr
	}
	return slog.String(attr.Key, RedactedValue)
}
