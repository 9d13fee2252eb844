package options

import (
	"go.uber.org/zap"
)

type LOption func(*LoopOptions) error

type LoopOptions struct {
	Logger *zap.Logger
}

func (o *LoopOptions) SetDefault() {
	*o = LoopOptions{
		Logger: zap.NewNop(),
	}
}

func WithLLogger(l *zap.Logger) LOption {
	return func(o *LoopOptions) error { o.Logger = l; return nil }
}
