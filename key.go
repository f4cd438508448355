package chaindict

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	keySep       = "/"
	keyExtSep    = "."
	keyIndexFmt  = "%010d"
	keyIndexSize = 10
)

// KeyPrefix returns the prefix shared by all keys of a namespace.
func KeyPrefix(namespace string) string {
	if namespace == "" {
		return ""
	}
	return strings.TrimSuffix(namespace, keySep) + keySep
}

// LinkKey returns the storage key of the file of the given kind for a link.
// Indices are zero-padded so keys sort in link order.
func LinkKey(namespace string, index uint32, kind Kind) string {
	return KeyPrefix(namespace) + fmt.Sprintf(keyIndexFmt, index) + keyExtSep + kind.String()
}

// ParseLinkKey parses a key produced by LinkKey. It returns false for any key
// which does not exactly match the scheme.
func ParseLinkKey(namespace, key string) (uint32, Kind, bool) {
	prefix := KeyPrefix(namespace)
	if !strings.HasPrefix(key, prefix) {
		return 0, 0, false
	}
	name := key[len(prefix):]

	for _, kind := range []Kind{KindDelta, KindSnapshot} {
		ext := keyExtSep + kind.String()
		if !strings.HasSuffix(name, ext) {
			continue
		}

		digits := name[:len(name)-len(ext)]
		if len(digits) != keyIndexSize || strings.TrimLeft(digits, "0123456789") != "" {
			return 0, 0, false
		}
		index, err := strconv.ParseUint(digits, 10, 32)
		if err != nil {
			return 0, 0, false
		}
		return uint32(index), kind, true
	}
	return 0, 0, false
}
