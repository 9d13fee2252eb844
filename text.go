package djvustream

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// fallbackCharmap decodes text that is not valid UTF-8.
var fallbackCharmap = charmap.Windows1252

// ReadAllText drains the cursor and decodes the bytes as UTF-8 text.
// Byte sequences that are not valid UTF-8 are decoded as Windows-1252 instead,
// so the result is deterministic for a given input.
func (c *Cursor) ReadAllText() (string, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(c); err != nil {
		return "", err
	}
	return decodeText(buf.Bytes())
}

// ReadSizedText decodes the next n bytes as text, see ReadAllText.
// The cursor advances by n bytes (clamped to its effective end) no matter
// how much data could actually be decoded.
func (c *Cursor) ReadSizedText(n int64) (string, error) {
	text, err := c.Bounded(n).ReadAllText()
	c.Skip(n)
	return text, err
}

func decodeText(p []byte) (string, error) {
	if utf8.Valid(p) {
		return string(p), nil
	}
	decoded, err := fallbackCharmap.NewDecoder().Bytes(p)
	if err != nil {
		return "", fmt.Errorf("failed to decode %d bytes of text: %w", len(p), err)
	}
	return string(decoded), nil
}
