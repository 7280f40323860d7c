package benefits

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// Voucher code format: CodePrefix + CodeSeparator + CodeSuffixLength
// uppercase hex characters, e.g. VCH-9F86D081884C7D65.
const (
	CodePrefix       = "VCH"
	CodeSeparator    = "-"
	CodeSuffixLength = 16
	CodeLength       = len(CodePrefix) + len(CodeSeparator) + CodeSuffixLength
)

// NewCode draws a code from r, or from crypto/rand when r is nil.
// Uniqueness is not checked here; the store enforces it.
func NewCode(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	buf := make([]byte, CodeSuffixLength/2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return CodePrefix + CodeSeparator + strings.ToUpper(hex.EncodeToString(buf)), nil
}

// ValidateCode returns *InvalidCodeError unless code has the exact format.
func ValidateCode(code string) error {
	if len(code) != CodeLength {
		return &InvalidCodeError{Code: code, Reason: fmt.Sprintf("length %d, want %d", len(code), CodeLength)}
	}
	prefix := CodePrefix + CodeSeparator
	if !strings.HasPrefix(code, prefix) {
		return &InvalidCodeError{Code: code, Reason: "missing " + prefix + " prefix"}
	}
	for _, c := range code[len(prefix):] {
		if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'F') {
			return &InvalidCodeError{Code: code, Reason: fmt.Sprintf("non-hex character %q", c)}
		}
	}
	return nil
}
