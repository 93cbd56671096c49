// Package escape implements the wire codec used to pass filenames
// through the optional helper-process encoding (-e/--encode): a
// backslash escape for the three byte sequences that could otherwise be
// confused with record delimiters or the escape character itself.
package escape

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ngrash/mmv/internal/mmverrors"
)

// Encode replaces '\' with "\\", '\n' with the two-character sequence
// "\n", and '\t' with the two-character sequence "\t". All other bytes
// pass through unchanged. Encode is injective: Decode(Encode(s)) == s
// for every s, and no two distinct inputs produce the same output.
func Encode(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

// Decode is the inverse of Encode. A lone backslash at end-of-string,
// or a backslash followed by any byte other than '\\', 'n', or 't', is
// a decode error.
func Decode(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}

		if i+1 >= len(s) {
			return "", fmt.Errorf("%w: trailing backslash in %q", mmverrors.ErrDecodeFailure, s)
		}

		i++

		switch s[i] {
		case '\\':
			b.WriteByte('\\')
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		default:
			r, _ := utf8.DecodeRuneInString(s[i:])
			return "", fmt.Errorf("%w: invalid escape '\\%c' in %q", mmverrors.ErrDecodeFailure, r, s)
		}
	}

	return b.String(), nil
}
