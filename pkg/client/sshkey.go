package client

import "strings"

const upperhex = "0123456789ABCDEF"

// EncodeSSHKey percent-encodes key content the way the BLIH API stores it: every byte but
// ASCII letters, digits and -_.!~*'()/ is escaped.
func EncodeSSHKey(content string) string {
	var b strings.Builder
	b.Grow(len(content))
	for i := 0; i < len(content); i++ {
		c := content[i]
		if keepInSSHKey(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

func keepInSSHKey(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()/", c) >= 0
}
