package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ReadOptions controls CSV loading. The zero value reads comma-separated
// UTF-8 and keeps cells as written.
type ReadOptions struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune
	// Charset is an IANA/WHATWG encoding label (e.g. "windows-1250",
	// "latin1"). Empty means UTF-8.
	Charset string
	// TrimSpace strips leading/trailing whitespace from every cell before
	// missing-token matching, so "male " and "male" become one value.
	TrimSpace bool
	// LazyQuotes is passed through to encoding/csv.
	LazyQuotes bool
}

// LoadCSV opens path and reads it with ReadCSV. A missing file surfaces the
// *fs.PathError from os.Open unchanged (wrapped).
func LoadCSV(path string, opt ReadOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	t, err := ReadCSV(f, opt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ReadCSV reads a whole CSV document into memory and infers column types.
//
// The first record is the header. Rows shorter than the header are padded
// with missing cells; rows longer than the header are rejected.
func ReadCSV(r io.Reader, opt ReadOptions) (*Table, error) {
	dec, err := decodeReader(r, opt.Charset)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(dec)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = opt.LazyQuotes
	cr.ReuseRecord = true

	var line int
	readRec := func() ([]string, error) {
		line++
		return cr.Read()
	}

	hdr, err := readRec()
	if err == io.EOF {
		return New()
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	headers := make([]string, len(hdr))
	for i, h := range hdr {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		headers[i] = h
	}

	raw := make([][]*string, len(headers))
	for {
		rec, err := readRec()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv read line %d: %w", line, err)
		}
		if len(rec) > len(headers) {
			return nil, fmt.Errorf("csv line %d: expected %d fields, saw %d", line, len(headers), len(rec))
		}
		for i := range headers {
			if i >= len(rec) {
				raw[i] = append(raw[i], nil)
				continue
			}
			v := rec[i]
			if opt.TrimSpace {
				v = strings.TrimSpace(v)
			}
			if IsMissingToken(v) {
				raw[i] = append(raw[i], nil)
				continue
			}
			raw[i] = append(raw[i], &v)
		}
	}

	cols := make([]*Column, len(headers))
	for i, h := range headers {
		cols[i] = InferColumn(h, raw[i])
	}
	return New(cols...)
}

// decodeReader wraps r so that it yields UTF-8. A UTF-8 byte order mark is
// stripped in either case.
func decodeReader(r io.Reader, charset string) (io.Reader, error) {
	cs := strings.ToLower(strings.TrimSpace(charset))
	if cs == "" || cs == "utf-8" || cs == "utf8" {
		return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())), nil
	}
	enc, err := htmlindex.Get(cs)
	if err != nil {
		return nil, fmt.Errorf("charset %q: %w", charset, err)
	}
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())), nil
}

// WriteCSV writes t as CSV: a header line, then one line per row. Missing
// cells are written as empty fields.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Names()); err != nil {
		return err
	}

	rec := make([]string, len(t.cols))
	for i := 0; i < t.rows; i++ {
		for j, c := range t.cols {
			rec[j] = FormatCSV(c.V[i])
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes t to path, creating the parent directory if needed.
func SaveCSV(path string, t *Table) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	if err := WriteCSV(f, t); err != nil {
		_ = f.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	return f.Close()
}
