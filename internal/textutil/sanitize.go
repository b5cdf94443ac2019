package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/language"
	"golang.org/x/text/transform"
)

// fieldReplacer keeps a value on one CSV line in one column.
var fieldReplacer = strings.NewReplacer(
	"\n", "",
	"\r", "",
	",", ".",
)

// SanitizeField makes value safe for a single CSV field: line breaks are
// removed and commas become periods. The result is idempotent.
func SanitizeField(value string) string {
	return fieldReplacer.Replace(value)
}

// DecodeTelemetry turns raw bytes from a serial device into text. Invalid
// UTF-8 sequences are replaced rather than rejected and trailing line
// terminators are removed.
func DecodeTelemetry(raw []byte) string {
	decoded, _, err := transform.Bytes(unicode.UTF8.NewDecoder(), raw)
	if err != nil {
		decoded = []byte(strings.ToValidUTF8(string(raw), "�"))
	}
	return strings.TrimRight(string(decoded), "\r\n")
}

// Title turns an identifier such as "camera_timeout" into "Camera Timeout"
// for display.
func Title(value string) string {
	return cases.Title(language.Und).String(strings.ReplaceAll(value, "_", " "))
}
