package options

import (
	"go.uber.org/zap"
)

type COption func(*CursorOptions) error

type CursorOptions struct {
	Logger *zap.Logger
	Name   string
}

func (o *CursorOptions) SetDefault() {
	*o = CursorOptions{
		Logger: zap.NewNop(),
	}
}

func WithCLogger(l *zap.Logger) COption {
	return func(o *CursorOptions) error { o.Logger = l; return nil }
}

// WithName tags the cursor. A 4 character name marks a leaf chunk.
func WithName(name string) COption {
	return func(o *CursorOptions) error { o.Name = name; return nil }
}
