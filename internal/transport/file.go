package transport

import (
	"context"
	"io"
	"os"

	perr "prt7/internal/errors"
)

// StdinPath selects standard input as a FileSource.
const StdinPath = "-"

// FileSource replays a captured transmission from a file, or from
// standard input when Path is "-".
type FileSource struct {
	Path  string
	Stdin io.Reader // used for "-", defaults to os.Stdin
}

// Open opens the file.  Standard input is never closed by the returned
// stream.
func (s *FileSource) Open(_ context.Context) (io.ReadCloser, error) {
	if s.Path == StdinPath {
		in := s.Stdin
		if in == nil {
			in = os.Stdin
		}
		return io.NopCloser(in), nil
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, perr.Wrap("open", s.String(), err)
	}
	return f, nil
}

func (s *FileSource) String() string {
	if s.Path == StdinPath {
		return "stdin"
	}
	return "file:" + s.Path
}
