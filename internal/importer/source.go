package importer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
)

const maxLineSize = 1 << 20

// LineError reports a line of an import file that could not be decoded.
type LineError struct {
	Path string
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// ReadFile streams the gzip-compressed JSON-lines file at path. Records are
// passed to fn; lines that fail to decode are passed to bad and skipped.
// Blank lines are ignored.
func ReadFile(ctx context.Context, path string, fn func(Record), bad func(*LineError)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	return Read(ctx, path, f, fn, bad)
}

// Read is ReadFile over an already opened gzip stream; name is used in
// LineError only.
func Read(ctx context.Context, name string, r io.Reader, fn func(Record), bad func(*LineError)) error {
	gz, err := pgzip.NewReader(r)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", name)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		rec, err := DecodeRecord(data)
		if err == nil {
			err = rec.Validate()
		}
		if err != nil {
			bad(&LineError{Path: name, Line: line, Err: err})
			continue
		}
		fn(rec)
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", name)
	}
	return nil
}

// SKUSet remembers SKUs seen during an import. The bloom filter answers the
// common "never seen" case; its hits are confirmed against an exact set so a
// false positive never drops a product.
type SKUSet struct {
	filter *bloom.BloomFilter
	exact  map[string]struct{}
}

// NewSKUSet sizes the filter for about n SKUs at false positive rate fpr.
func NewSKUSet(n uint, fpr float64) *SKUSet {
	return &SKUSet{
		filter: bloom.NewWithEstimates(max(n, 1), fpr),
		exact:  make(map[string]struct{}, n),
	}
}

// Add records sku and reports whether it was new.
func (s *SKUSet) Add(sku string) bool {
	if s.filter.TestAndAddString(sku) {
		if _, dup := s.exact[sku]; dup {
			return false
		}
	}
	s.exact[sku] = struct{}{}
	return true
}

// Len returns the number of distinct SKUs added.
func (s *SKUSet) Len() int { return len(s.exact) }
