/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package rooms

import (
	"crypto/rand"
	"strings"
)

const (
	CodeLength = 6

	// CodeAlphabet leaves out I, O, 0 and 1 so codes can be read aloud.
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// NormalizeCode upper-cases s and checks it against the room code format.
func NormalizeCode(s string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	if len(code) != CodeLength {
		return "", ErrInvalidCode
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(CodeAlphabet, code[i]) < 0 {
			return "", ErrInvalidCode
		}
	}
	return code, nil
}

// NewCode returns a random room code.
func NewCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	out := make([]byte, CodeLength)
	for i := range out {
		// 256 is a multiple of len(CodeAlphabet), so there is no modulo bias.
		out[i] = CodeAlphabet[int(buf[i])%len(CodeAlphabet)]
	}
	return string(out), nil
}
