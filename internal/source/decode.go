package source

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode converts raw input bytes to a Go string.
//
// utf-8 (the default) only drops a leading BOM; invalid bytes pass through
// untouched. utf-16 honours a BOM and assumes little endian without one.
func Decode(b []byte, enc string) (string, error) {
	var t transform.Transformer
	switch strings.ToLower(strings.TrimSpace(enc)) {
	case "", "utf-8", "utf8":
		return string(bytes.TrimPrefix(b, utf8BOM)), nil
	case "utf-16", "utf16":
		t = unicode.BOMOverride(unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder())
	case "windows-1252", "cp1252":
		t = charmap.Windows1252.NewDecoder()
	case "iso-8859-1", "latin1":
		t = charmap.ISO8859_1.NewDecoder()
	default:
		return "", fmt.Errorf("unsupported encoding %q", enc)
	}

	out, _, err := transform.Bytes(t, b)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", enc, err)
	}
	return string(out), nil
}
