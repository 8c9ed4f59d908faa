package asset

import (
	"fmt"
	"strings"
)

// Entity IDs become filenames, so they pass through a reversible escape:
// ASCII letters, digits, dash and dot map to themselves; everything else
// (including underscore, the escape character) becomes _XX hex bytes.

func escapeFilename(id string) string {
	var b strings.Builder
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '.':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "_%02X", c)
		}
	}
	return b.String()
}

func unescapeFilename(name string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c != '_' {
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(name) {
			return "", fmt.Errorf("asset: truncated escape in %q", name)
		}
		var v byte
		if _, err := fmt.Sscanf(name[i+1:i+3], "%02X", &v); err != nil {
			return "", fmt.Errorf("asset: bad escape in %q", name)
		}
		b.WriteByte(v)
		i += 2
	}
	return b.String(), nil
}
