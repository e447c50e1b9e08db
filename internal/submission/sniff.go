package submission

import "bytes"

var signatures = map[string][]byte{
	MimeJPEG: {0xFF, 0xD8, 0xFF},
	MimePNG:  {0x89, 0x50, 0x4E, 0x47},
	MimePDF:  {0x25, 0x50, 0x44, 0x46},
}

// MatchesSignature reports whether data starts with the magic bytes of mimeType. Anything
// shorter than four bytes never matches.
func MatchesSignature(data []byte, mimeType string) bool {
	if len(data) < 4 {
		return false
	}
	sig, ok := signatures[mimeType]
	return ok && bytes.HasPrefix(data, sig)
}
