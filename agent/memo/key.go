package memo

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// Key identifies one memoized computation.
type Key string

// Fingerprint derives a key from a scope and its effective parameters.
// Map keys are sorted, string values trimmed, and nil or empty-string values dropped,
// so {"a":1,"b":""} and {"a":1} produce the same key.
func Fingerprint(scope string, params map[string]any) (Key, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return "", fmt.Errorf("memo: empty fingerprint scope")
	}

	raw, err := sonic.ConfigStd.Marshal(normalize(params))
	if err != nil {
		return "", fmt.Errorf("memo: encode params for scope=%s: %w", scope, err)
	}
	sum := sha256.Sum256(raw)
	return Key(scope + ":" + hex.EncodeToString(sum[:])), nil
}

func normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			n := normalize(val)
			if n == nil {
				continue
			}
			if s, ok := n.(string); ok && s == "" {
				continue
			}
			out[strings.TrimSpace(k)] = n
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, val := range t {
			out = append(out, normalize(val))
		}
		return out
	case []string:
		out := make([]any, 0, len(t))
		for _, s := range t {
			out = append(out, strings.TrimSpace(s))
		}
		return out
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}
