package options

import (
	"fmt"

	"go.uber.org/zap"
)

const DefaultBlockSize = 4096

type POption func(*PoolOptions) error

type PoolOptions struct {
	Logger    *zap.Logger
	BlockSize int
}

func (o *PoolOptions) SetDefault() {
	*o = PoolOptions{
		Logger:    zap.NewNop(),
		BlockSize: DefaultBlockSize,
	}
}

func WithPLogger(l *zap.Logger) POption {
	return func(o *PoolOptions) error { o.Logger = l; return nil }
}

func WithBlockSize(size int) POption {
	return func(o *PoolOptions) error {
		if size <= 0 {
			return fmt.Errorf("block size must be positive: %d", size)
		}
		o.BlockSize = size
		return nil
	}
}
