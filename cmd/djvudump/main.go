package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/schollz/progressbar/v3"
	"github.com/zeebo/blake3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/djvu-html5/djvustream"
	"github.com/djvu-html5/djvustream/options"
	"github.com/djvu-html5/djvustream/pool"
	"github.com/djvu-html5/djvustream/sched"
)

type readCloser struct {
	io.Reader
	io.Closer
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func main() {
	var (
		inputFlag                             string
		blockSizeFlag                         int
		pollFlag                              time.Duration
		verifyFlag, verboseFlag, progressFlag bool
	)

	flag.StringVar(&inputFlag, "f", "", "input filename, - for stdin or an http(s) URL; .zst inputs are decompressed")
	flag.IntVar(&blockSizeFlag, "b", options.DefaultBlockSize, "block size in bytes")
	flag.DurationVar(&pollFlag, "poll", 100*time.Millisecond, "how often to check whether the document has arrived")
	flag.BoolVar(&verifyFlag, "t", false, "verify the bytes read back through a cursor")
	flag.BoolVar(&progressFlag, "p", false, "show loading progress")
	flag.BoolVar(&verboseFlag, "v", false, "be verbose")

	flag.Parse()

	var err error
	var logger *zap.Logger
	if verboseFlag {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatal("failed to initialize logger", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if inputFlag == "" {
		logger.Fatal("input needs to be defined")
	}
	if verifyFlag && isURL(inputFlag) {
		logger.Fatal("verify can't be used with URL input")
	}

	p, err := pool.New(options.WithBlockSize(blockSizeFlag), options.WithPLogger(logger))
	if err != nil {
		logger.Fatal("failed to create block pool", zap.Error(err))
	}

	loop, err := sched.NewLoop(options.WithLLogger(logger))
	if err != nil {
		logger.Fatal("failed to create loop", zap.Error(err))
	}

	var load func(ctx context.Context) error
	expected := blake3.New()
	if isURL(inputFlag) {
		load = func(ctx context.Context) error {
			_, err := p.Fetch(ctx, nil, inputFlag)
			return err
		}
	} else {
		input, err := openInput(inputFlag, logger)
		if err != nil {
			logger.Fatal("failed to open input", zap.Error(err))
		}

		var sinks []io.Writer
		if verifyFlag {
			sinks = append(sinks, expected)
		}
		if progressFlag {
			sinks = append(sinks, progressbar.DefaultBytes(inputSize(inputFlag), "loading"))
		}
		var r io.Reader = input
		if len(sinks) > 0 {
			r = io.TeeReader(input, io.MultiWriter(sinks...))
		}

		load = func(ctx context.Context) (err error) {
			defer func() {
				err = multierr.Append(err, input.Close())
			}()
			_, err = p.ReadFrom(ctx, r)
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return load(gCtx)
	})

	var dumpErr error
	done := false
	loop.Every(pollFlag, func() {
		if done {
			return
		}
		if !p.IsReady() {
			logger.Debug("waiting for data", zap.Int64("end", p.EndOffset()))
			return
		}
		done = true
		defer cancel()

		c, err := djvustream.NewCursor(p, options.WithCLogger(logger))
		if err != nil {
			dumpErr = err
			return
		}
		if !c.HasSignature() {
			logger.Warn("input does not start with a DjVu signature")
		}
		if dumpErr = dump(os.Stdout, c, 0); dumpErr != nil {
			return
		}

		if verifyFlag {
			dumpErr = verify(c.Clone(), expected.Sum(nil), logger)
		}
	})
	g.Go(func() error {
		err := loop.Run(gCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("failed to load document", zap.Error(err))
	}
	if dumpErr != nil {
		logger.Fatal("failed to dump document", zap.Error(dumpErr))
	}
}

func openInput(name string, logger *zap.Logger) (io.ReadCloser, error) {
	var f io.ReadCloser = os.Stdin
	if name != "-" {
		var err error
		if f, err = os.Open(name); err != nil {
			return nil, err
		}
	}

	if !strings.HasSuffix(name, ".zst") {
		return f, nil
	}

	logger.Debug("decompressing input", zap.String("input", name))
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, multierr.Append(err, f.Close())
	}
	return readCloser{dec, closerFunc(func() error {
		dec.Close()
		return f.Close()
	})}, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func inputSize(name string) int64 {
	if name == "-" || strings.HasSuffix(name, ".zst") {
		return -1
	}
	fi, err := os.Stat(name)
	if err != nil {
		return -1
	}
	return fi.Size()
}

func verify(c *djvustream.Cursor, expected []byte, logger *zap.Logger) error {
	if _, err := c.Seek(0, io.SeekStart); err != nil {
		return err
	}

	actual := blake3.New()
	m, err := io.Copy(actual, c)
	if err != nil {
		return err
	}

	if !bytes.Equal(actual.Sum(nil), expected) {
		logger.Error("checksum verification failed", zap.Int64("processed", m),
			zap.Binary("actual", actual.Sum(nil)), zap.Binary("expected", expected))
		return errors.New("checksum mismatch")
	}
	logger.Info("checksum verification succeeded", zap.Binary("actual", actual.Sum(nil)))
	return nil
}
