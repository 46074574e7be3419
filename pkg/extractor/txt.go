package extractor

import "strings"

// TXT decodes the payload as UTF-8, dropping a byte-order mark and replacing
// invalid sequences.
func TXT(data []byte) string {
	s := strings.TrimPrefix(string(data), "\uFEFF")
	s = strings.ToValidUTF8(s, "\uFFFD")
	return normalizeNewlines(s)
}
