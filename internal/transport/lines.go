package transport

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"iter"

	"prt7/util"
)

// DefaultMaxLine is the longest line delivered in one piece.  Longer
// runs of bytes without a terminator arrive in chunks of this size.
const DefaultMaxLine = 255

// Lines yields the lines of rc in order.  A line ends at '\n' or '\r';
// the terminator is dropped and empty lines are skipped.
//
// The sequence ends without an error at end of stream.  A read failure
// is yielded once as the error of the final pair.  When ctx is
// cancelled rc is closed to unblock the reader and ctx.Err() is
// yielded.  Breaking out of the loop also closes rc.
func Lines(ctx context.Context, rc io.ReadCloser, maxLen int) iter.Seq2[string, error] {
	if maxLen <= 0 {
		maxLen = DefaultMaxLine
	}
	return func(yield func(string, error) bool) {
		type item struct {
			line string
			err  error
		}
		items := make(chan item)
		done := make(chan struct{})
		defer close(done)
		defer rc.Close()
		stop := context.AfterFunc(ctx, func() { rc.Close() })
		defer stop()

		go func() {
			defer close(items)
			buf := util.GetBuf()
			defer util.PutBuf(buf)

			sc := bufio.NewScanner(rc)
			sc.Buffer(*buf, max(maxLen+1, util.ReadBufSize))
			sc.Split(splitLines(maxLen))
			for sc.Scan() {
				select {
				case items <- item{line: sc.Text()}:
				case <-done:
					return
				}
			}
			if err := sc.Err(); err != nil {
				select {
				case items <- item{err: err}:
				case <-done:
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				yield("", ctx.Err())
				return
			case it, ok := <-items:
				if !ok {
					return
				}
				if it.err != nil && ctx.Err() != nil {
					it.err = ctx.Err()
				}
				if !yield(it.line, it.err) || it.err != nil {
					return
				}
			}
		}
	}
}

// splitLines is a bufio.SplitFunc for frame lines terminated by '\n'
// or '\r' and capped at maxLen bytes.
func splitLines(maxLen int) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (int, []byte, error) {
		skip := 0
		for skip < len(data) && (data[skip] == '\n' || data[skip] == '\r') {
			skip++
		}
		rest := data[skip:]

		if i := bytes.IndexAny(rest, "\r\n"); i >= 0 && i <= maxLen {
			return skip + i + 1, rest[:i], nil
		}
		if len(rest) >= maxLen {
			return skip + maxLen, rest[:maxLen], nil
		}
		if atEOF && len(rest) > 0 {
			return len(data), rest, nil
		}
		// Consume the terminators; wait for more data.
		return skip, nil, nil
	}
}
