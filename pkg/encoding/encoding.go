// Package encoding converts legacy-encoded text found in model and material
// files to UTF-8.
package encoding

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// ErrUnknownEncoding is returned by Lookup for unsupported encoding names.
var ErrUnknownEncoding = errors.New("unknown text encoding")

// Lookup returns the encoding registered under name. Names are matched
// case-insensitively; an empty name means UTF-8.
func Lookup(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return encoding.Nop, nil
	case "euc-kr", "euckr", "cp949":
		return korean.EUCKR, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "latin1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	case "shift-jis", "shift_jis", "sjis":
		return japanese.ShiftJIS, nil
	case "gbk", "cp936":
		return simplifiedchinese.GBK, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
}

// Decode converts enc-encoded bytes to a UTF-8 string.
// Returns the input unchanged if conversion fails.
func Decode(enc encoding.Encoding, data []byte) string {
	if enc == nil || enc == encoding.Nop {
		return string(data)
	}
	result, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return string(data)
	}
	return string(result)
}

// DecodeString is Decode for strings read byte-for-byte from a file.
func DecodeString(enc encoding.Encoding, s string) string {
	return Decode(enc, []byte(s))
}

// NormalizePath turns a texture path written on another platform into a
// slash-separated relative path.
func NormalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, `"`)
	// Convert backslashes to forward slashes
	path = strings.ReplaceAll(path, "\\", "/")
	for strings.HasPrefix(path, "./") {
		path = path[2:]
	}
	return path
}
