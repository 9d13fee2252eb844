package main

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/djvu-html5/djvustream"
)

const maxTextPreview = 60

// dump prints the chunk tree under c, one chunk per line.
func dump(w io.Writer, c *djvustream.Cursor, depth int) error {
	chunks := c.Chunks()
	if chunks == nil {
		return nil
	}

	for chunk, err := range chunks.All() {
		if err != nil {
			return err
		}

		line := fmt.Sprintf("%s%s [%d] @%d", strings.Repeat("  ", depth), chunk.Name(), chunk.Available(), chunk.Offset())
		if detail, err := describe(chunk.Clone()); err != nil {
			return err
		} else if detail != "" {
			line += " " + detail
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}

		if err := dump(w, chunk, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// describe decodes a short summary of the chunks whose layout is simple.
func describe(c *djvustream.Cursor) (string, error) {
	switch c.Name() {
	case "INFO":
		width, err := c.Read16()
		if err == io.EOF {
			return "", nil
		} else if err != nil {
			return "", err
		}
		height, err := c.Read16()
		if err == io.EOF {
			return "", nil
		} else if err != nil {
			return "", err
		}
		return fmt.Sprintf("%dx%d", width, height), nil
	case "TXTa":
		size, err := c.Read24()
		if err == io.EOF {
			return "", nil
		} else if err != nil {
			return "", err
		}
		text, err := c.ReadSizedText(int64(size))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%q", preview(text)), nil
	}
	return "", nil
}

func preview(s string) string {
	if utf8.RuneCountInString(s) <= maxTextPreview {
		return s
	}
	return string([]rune(s)[:maxTextPreview]) + "..."
}
