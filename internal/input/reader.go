// Package input reads the tab-delimited sequence records consumed by the
// load command.
package input

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/mgijax/srcload/internal/source"
)

// row is the on-disk layout. Columns are matched by header name, so order
// in the file does not matter and unknown columns are ignored.
type row struct {
	SequenceKey int64  `csv:"sequence_key"`
	Organism    string `csv:"organism,omitempty"`
	Strain      string `csv:"strain,omitempty"`
	Tissue      string `csv:"tissue,omitempty"`
	Gender      string `csv:"gender,omitempty"`
	CellLine    string `csv:"cell_line,omitempty"`
	Age         string `csv:"age,omitempty"`
	Library     string `csv:"library,omitempty"`
	CloneIDs    string `csv:"clone_ids,omitempty"` // separated by ',' or ';'
}

// Item is one decoded record. Line counts records from the header, skipping
// comments. Err is set when the record could not be decoded; the stream
// continues past it.
type Item struct {
	Line   int
	Record source.Record
	Err    error
}

// Options configures Stream.
type Options struct {
	Delimiter rune // default '\t'
	Comment   rune // default '#'; -1 disables comments
}

// Stream decodes records from r and sends them on the item channel. A
// failure that ends the stream (bad header, broken reader, cancellation) is
// sent on the error channel. Both channels are closed when reading stops.
func Stream(ctx context.Context, r io.Reader, opts Options) (<-chan Item, <-chan error) {
	itemCh := make(chan Item, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(itemCh)
		defer close(errCh)

		cr := csv.NewReader(r)
		cr.Comma = '\t'
		if opts.Delimiter != 0 {
			cr.Comma = opts.Delimiter
		}
		switch {
		case opts.Comment == 0:
			cr.Comment = '#'
		case opts.Comment > 0:
			cr.Comment = opts.Comment
		}
		cr.LazyQuotes = true
		cr.FieldsPerRecord = -1

		dec, err := csvutil.NewDecoder(cr)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			errCh <- eris.Wrap(err, "input: read header")
			return
		}
		if !hasColumn(dec.Header(), "sequence_key") {
			errCh <- eris.New("input: header has no sequence_key column")
			return
		}

		line := 1
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "input: context cancelled")
				return
			}

			var rw row
			err := dec.Decode(&rw)
			if errors.Is(err, io.EOF) {
				return
			}
			line++

			item := Item{Line: line}
			var parseErr *csv.ParseError
			switch {
			case errors.As(err, &parseErr):
				errCh <- eris.Wrapf(err, "input: read line %d", line)
				return
			case err != nil:
				item.Err = eris.Wrapf(err, "input: decode line %d", line)
			default:
				item.Record = rw.record()
			}

			select {
			case itemCh <- item:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "input: context cancelled")
				return
			}
		}
	}()

	return itemCh, errCh
}

func (r row) record() source.Record {
	return source.Record{
		SequenceKey: r.SequenceKey,
		Raw: source.RawAttributes{
			Organism:    strings.TrimSpace(r.Organism),
			Strain:      strings.TrimSpace(r.Strain),
			Tissue:      strings.TrimSpace(r.Tissue),
			Gender:      strings.TrimSpace(r.Gender),
			CellLine:    strings.TrimSpace(r.CellLine),
			Age:         strings.TrimSpace(r.Age),
			LibraryName: strings.TrimSpace(r.Library),
		},
		CloneIDs: splitCloneIDs(r.CloneIDs),
	}
}

func splitCloneIDs(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func hasColumn(header []string, name string) bool {
	for _, h := range header {
		if h == name {
			return true
		}
	}
	return false
}
