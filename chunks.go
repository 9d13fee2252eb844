package djvustream

import (
	"fmt"
	"io"
	"iter"

	"go.uber.org/zap"
)

const (
	chunkIDSize = 4
	// leafNameSize is the length of a chunk name that marks a leaf chunk.
	leafNameSize = chunkIDSize
)

// compositeIDs are the IFF chunk ids carrying a secondary id and nested chunks.
var compositeIDs = map[string]struct{}{
	"FORM": {},
	"LIST": {},
	"PROP": {},
	"CAT ": {},
}

// Chunks lazily enumerates the IFF chunks found in a cursor's range.
// Each chunk is returned as a cursor bounded to the chunk content. Leaf
// chunks are named after their 4 character id; composite chunks are named
// "ID:SECONDARY" (e.g. "FORM:DJVU") and can be enumerated in turn.
//
// Chunks is forward-only and cannot be restarted.
type Chunks struct {
	parent *Cursor
	done   bool
}

// Chunks returns an enumerator over the nested chunks of the cursor, or nil
// if the cursor is a leaf chunk (its name is exactly 4 characters long).
// The enumerator works on a clone: the position of c is not affected.
func (c *Cursor) Chunks() *Chunks {
	if len(c.name) == leafNameSize {
		return nil
	}
	return &Chunks{parent: c.Clone()}
}

// Next returns the next chunk. It returns io.EOF once the parent range is
// exhausted, including when the remaining data is too short for a header.
func (e *Chunks) Next() (*Cursor, error) {
	if e.done {
		return nil, io.EOF
	}

	child, err := e.next()
	if err != nil {
		e.done = true
		return nil, err
	}
	return child, nil
}

func (e *Chunks) next() (*Cursor, error) {
	p := e.parent

	id, err := e.readID()
	if err != nil {
		return nil, err
	}
	if id == string(Signature) {
		if id, err = e.readID(); err != nil {
			return nil, err
		}
	}

	size, err := p.Read32()
	if err != nil {
		return nil, err
	}

	name := id
	if _, ok := compositeIDs[id]; ok {
		if size < chunkIDSize {
			p.logger.Debug("composite chunk too short",
				zap.String("id", id), zap.Int64("size", size), zap.Int64("offset", p.offset))
			return nil, io.EOF
		}
		secondary, err := e.readID()
		if err != nil {
			return nil, err
		}
		name = id + ":" + secondary
		size -= chunkIDSize
	}

	child := p.Bounded(size)
	child.SetName(name)
	child.Mark()

	// Chunk contents are padded to an even length.
	p.Skip(size + size&1)
	return child, nil
}

func (e *Chunks) readID() (string, error) {
	var id [chunkIDSize]byte
	n, err := e.parent.ReadFull(id[:])
	if err != nil {
		return "", err
	}
	if n < chunkIDSize {
		return "", io.EOF
	}
	return string(id[:]), nil
}

// All adapts the enumerator to a range-over-func sequence. A hard error is
// yielded once, after which the sequence stops.
func (e *Chunks) All() iter.Seq2[*Cursor, error] {
	return func(yield func(*Cursor, error) bool) {
		for {
			child, err := e.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("failed to read chunk header: %w", err))
				return
			}
			if !yield(child, nil) {
				return
			}
		}
	}
}
