package djvustream_test

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"github.com/djvu-html5/djvustream"
	"github.com/djvu-html5/djvustream/options"
	"github.com/djvu-html5/djvustream/pool"
)

func Example() {
	doc := []byte("AT&T" +
		"FORM\x00\x00\x00\x1eDJVU" +
		"INFO\x00\x00\x00\x04\x09\xf6\x0c\xe4" +
		"TXTa\x00\x00\x00\x05hello\x00")

	p, err := pool.New(options.WithBlockSize(8))
	if err != nil {
		log.Fatal(err)
	}
	if _, err := p.ReadFrom(context.Background(), bytes.NewReader(doc)); err != nil {
		log.Fatal(err)
	}

	c, err := djvustream.NewCursor(p)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("DjVu: %t\n", c.HasSignature())

	form, err := c.Chunks().Next()
	if err != nil {
		log.Fatal(err)
	}
	for chunk, err := range form.Chunks().All() {
		if err != nil {
			log.Fatal(err)
		}
		switch chunk.Name() {
		case "INFO":
			width, _ := chunk.Read16()
			height, _ := chunk.Read16()
			fmt.Printf("%s: %dx%d\n", chunk.Name(), width, height)
		default:
			text, _ := chunk.ReadAllText()
			fmt.Printf("%s: %s\n", chunk.Name(), text)
		}
	}

	// Output:
	// DjVu: true
	// INFO: 2550x3300
	// TXTa: hello
}
