package natskv

import (
	"regexp"
	"testing"
)

var validKey = regexp.MustCompile(`^[-/_=.a-zA-Z0-9]+$`)

func TestEncodeKey(t *testing.T) {
	keys := []string{
		"idem|POST|/api/v1/tasks|temp-1",
		"key with spaces",
		"wild*card>",
		"ümlaut",
	}
	seen := make(map[string]string)
	for _, k := range keys {
		enc := encodeKey(k)
		if !validKey.MatchString(enc) {
			t.Errorf("encodeKey(%q) = %q is not a valid KV key", k, enc)
		}
		if prev, dup := seen[enc]; dup {
			t.Errorf("collision between %q and %q", prev, k)
		}
		seen[enc] = k
	}
}
