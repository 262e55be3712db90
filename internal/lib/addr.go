package lib

import "unicode/utf8"

// AddrShort shortens a long identifier for log output, "0x1234...abcd"
func AddrShort(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// Truncate cuts s to at most max bytes on a rune boundary, appending suffix when it was cut
func Truncate(s string, max int, suffix string) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + suffix
}
