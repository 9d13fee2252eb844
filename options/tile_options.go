package options

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTileSize   = 256
	DefaultTickPeriod = 100 * time.Millisecond
)

type TOption func(*TileOptions) error

type TileOptions struct {
	Logger     *zap.Logger
	TileSize   int
	TickPeriod time.Duration
	// Now is used to stamp tile accesses.
	Now func() time.Time
}

func (o *TileOptions) SetDefault() {
	*o = TileOptions{
		Logger:     zap.NewNop(),
		TileSize:   DefaultTileSize,
		TickPeriod: DefaultTickPeriod,
		Now:        time.Now,
	}
}

func WithTLogger(l *zap.Logger) TOption {
	return func(o *TileOptions) error { o.Logger = l; return nil }
}

func WithTileSize(size int) TOption {
	return func(o *TileOptions) error {
		if size <= 0 {
			return fmt.Errorf("tile size must be positive: %d", size)
		}
		o.TileSize = size
		return nil
	}
}

func WithTickPeriod(period time.Duration) TOption {
	return func(o *TileOptions) error {
		if period <= 0 {
			return fmt.Errorf("tick period must be positive: %s", period)
		}
		o.TickPeriod = period
		return nil
	}
}

func WithClock(now func() time.Time) TOption {
	return func(o *TileOptions) error { o.Now = now; return nil }
}
