package util

import "strings"

// SanitizeCell strips invalid UTF-8, NUL bytes and the byte order mark from a
// spreadsheet cell and trims surrounding whitespace. The result is safe to
// store in Postgres text columns.
func SanitizeCell(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	sanitized = strings.ReplaceAll(sanitized, "\x00", "")
	sanitized = strings.TrimPrefix(sanitized, "\ufeff")
	return strings.TrimSpace(sanitized)
}

// IsBlank reports whether a cell counts as missing. Spreadsheet exports
// write missing values as "nan" or leave them empty.
func IsBlank(value string) bool {
	v := strings.TrimSpace(value)
	return v == "" || strings.EqualFold(v, "nan")
}
