package apikey

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
)

const (
	Prefix = "dani-"

	// SuffixLen is the number of random base-36 characters after Prefix.
	SuffixLen = 13

	alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

	maskVisible = 4
	maskFill    = 20
)

// Generate returns a new secret value of the form dani-<13 base-36 chars>.
func Generate() (string, error) {
	return GenerateFrom(rand.Reader)
}

// GenerateFrom draws the suffix from r. Bytes >= 252 are rejected so every
// character of the alphabet is equally likely.
func GenerateFrom(r io.Reader) (string, error) {
	var sb strings.Builder
	sb.Grow(len(Prefix) + SuffixLen)
	sb.WriteString(Prefix)

	buf := make([]byte, SuffixLen)
	n := 0
	for n < SuffixLen {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("read entropy: %w", err)
		}
		for _, b := range buf {
			if b >= 252 {
				continue
			}
			sb.WriteByte(alphabet[int(b)%len(alphabet)])
			n++
			if n == SuffixLen {
				break
			}
		}
	}
	return sb.String(), nil
}

// Valid reports whether v has the dani-<13 base-36 chars> shape.
func Valid(v string) bool {
	if !strings.HasPrefix(v, Prefix) {
		return false
	}
	suffix := v[len(Prefix):]
	if len(suffix) != SuffixLen {
		return false
	}
	for i := 0; i < len(suffix); i++ {
		if !strings.ContainsRune(alphabet, rune(suffix[i])) {
			return false
		}
	}
	return true
}

// Mask keeps the first and last four characters and puts a fixed run of
// asterisks in between. Values shorter than eight characters have no middle
// to hide and are returned unchanged.
func Mask(v string) string {
	if len(v) < 2*maskVisible {
		return v
	}
	return v[:maskVisible] + strings.Repeat("*", maskFill) + v[len(v)-maskVisible:]
}
