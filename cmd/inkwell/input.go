package main

import (
	"context"
	"io"
)

// ctxReader pumps src from a background goroutine so reads can be abandoned
// when ctx ends. Reads after cancellation return io.EOF.
type ctxReader struct {
	ctx    context.Context
	chunks chan []byte
	errs   chan error
	rest   []byte
}

func newCtxReader(ctx context.Context, src io.Reader) *ctxReader {
	r := &ctxReader{
		ctx:    ctx,
		chunks: make(chan []byte),
		errs:   make(chan error, 1),
	}
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := src.Read(buf)
			if n > 0 {
				chunk := append([]byte(nil), buf[:n]...)
				select {
				case r.chunks <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				r.errs <- err
				return
			}
		}
	}()
	return r
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if len(r.rest) == 0 {
		select {
		case <-r.ctx.Done():
			return 0, io.EOF
		case err := <-r.errs:
			return 0, err
		case r.rest = <-r.chunks:
		}
	}
	n := copy(p, r.rest)
	r.rest = r.rest[n:]
	return n, nil
}
