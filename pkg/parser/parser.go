package parser

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// CSVSource implements RecordSource over a comma-delimited stream with no
// header row and a variable number of fields per record.
type CSVSource struct {
	name   string
	reader *csv.Reader
	closer io.Closer
}

// NewCSVSource opens the data file at path.
func NewCSVSource(path string) (*CSVSource, error) {
	f, err := os.Open(path) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return nil, fmt.Errorf("%w: opening data file %s: %w", ErrIO, path, err)
	}
	src := NewCSVSourceFromReader(f, path)
	src.closer = f
	return src, nil
}

// NewCSVSourceFromReader reads records from r. The name is used in errors
// and as the Source of each record.
func NewCSVSourceFromReader(r io.Reader, name string) *CSVSource {
	reader := csv.NewReader(r)
	reader.Comma = ','
	reader.FieldsPerRecord = -1

	return &CSVSource{
		name:   name,
		reader: reader,
	}
}

// Next returns the next record. Blank lines are skipped.
// Returns io.EOF when the stream is exhausted.
func (s *CSVSource) Next(ctx context.Context) (*RawRecord, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		fields, err := s.reader.Read()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, s.wrapReadError(err)
		}

		if len(fields) == 0 {
			continue
		}

		line, _ := s.reader.FieldPos(0)
		return &RawRecord{
			Fields: fields,
			Source: s.name,
			Line:   line,
		}, nil
	}
}

// Close releases the underlying file, if any.
func (s *CSVSource) Close() error {
	if s.closer != nil {
		err := s.closer.Close()
		s.closer = nil
		return err
	}
	return nil
}

func (s *CSVSource) wrapReadError(err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return &RowError{
			Source: s.name,
			Line:   parseErr.StartLine,
			Column: -1,
			Err:    fmt.Errorf("%w: %w", ErrMalformedRecord, parseErr.Err),
		}
	}
	return &RowError{
		Source: s.name,
		Column: -1,
		Err:    fmt.Errorf("%w: reading %s: %w", ErrIO, s.name, err),
	}
}

// ParseFile reads every row of the data file at path.
//
// Processing is all-or-nothing: the first failing row aborts the file and
// no partial dataset is returned.
func ParseFile(ctx context.Context, path string) (*Dataset, error) {
	src, err := NewCSVSource(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return Collect(ctx, src, path)
}

// ParseReader is ParseFile for an already open stream.
func ParseReader(ctx context.Context, r io.Reader, name string) (*Dataset, error) {
	src := NewCSVSourceFromReader(r, name)
	defer src.Close()

	return Collect(ctx, src, name)
}

// Collect materializes every record of src into a Dataset named name.
func Collect(ctx context.Context, src RecordSource, name string) (*Dataset, error) {
	ds := &Dataset{
		Source: name,
		Rows:   []RowData{},
	}

	for {
		rec, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		row, err := MaterializeRow(rec)
		if err != nil {
			return nil, err
		}
		ds.Rows = append(ds.Rows, row)
	}

	return ds, nil
}
