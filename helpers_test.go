package heroparser

import (
	"bytes"
	"encoding/csv"
	"io"
	"reflect"
	"strings"
	"testing"
)

// readerOptions holds the handful of stdlib csv.Reader fields worth
// varying across comparison tests.
type readerOptions struct {
	comma            rune
	comment          rune
	trimLeadingSpace bool
}

// compareWithStdlib reads input through both encoding/csv and Reader and
// fails the test on any record or error-shape mismatch.
func compareWithStdlib(t *testing.T, input string, opts *readerOptions) {
	t.Helper()

	stdReader := csv.NewReader(strings.NewReader(input))
	stdReader.FieldsPerRecord = -1
	if opts != nil {
		if opts.comma != 0 {
			stdReader.Comma = opts.comma
		}
		if opts.comment != 0 {
			stdReader.Comment = opts.comment
		}
		stdReader.TrimLeadingSpace = opts.trimLeadingSpace
	}

	hr := NewReader(strings.NewReader(input))
	hr.FieldsPerRecord = -1
	if opts != nil {
		if opts.comma != 0 {
			hr.Comma = opts.comma
		}
		if opts.comment != 0 {
			hr.Comment = opts.comment
		}
		hr.TrimLeadingSpace = opts.trimLeadingSpace
	}

	recordNum := 0
	for {
		stdRecord, stdErr := stdReader.Read()
		gotRecord, gotErr := hr.Read()

		stdIsEOF := stdErr == io.EOF
		gotIsEOF := gotErr == io.EOF
		if stdIsEOF != gotIsEOF {
			t.Errorf("EOF mismatch at record %d: encoding/csv EOF=%v, heroparser EOF=%v", recordNum, stdIsEOF, gotIsEOF)
			return
		}
		if stdIsEOF {
			break
		}

		stdHasErr := stdErr != nil
		gotHasErr := gotErr != nil
		if stdHasErr != gotHasErr {
			t.Errorf("error mismatch at record %d: encoding/csv err=%v, heroparser err=%v", recordNum, stdErr, gotErr)
			return
		}
		if stdHasErr {
			return
		}

		if !reflect.DeepEqual(stdRecord, gotRecord) {
			t.Errorf("record %d mismatch:\nencoding/csv=%q\nheroparser  =%q", recordNum, stdRecord, gotRecord)
		}
		recordNum++
	}
}

// compareWriterWithStdlib writes records through both encoding/csv and
// Writer (under QuoteWhenNeeded, no injection protection) and compares the
// resulting bytes exactly.
func compareWriterWithStdlib(t *testing.T, records [][]string, useCRLF bool) {
	t.Helper()

	var stdBuf bytes.Buffer
	stdWriter := csv.NewWriter(&stdBuf)
	stdWriter.UseCRLF = useCRLF
	if err := stdWriter.WriteAll(records); err != nil {
		t.Fatalf("encoding/csv WriteAll error: %v", err)
	}
	stdWriter.Flush()
	if err := stdWriter.Error(); err != nil {
		t.Fatalf("encoding/csv Flush error: %v", err)
	}

	var gotBuf bytes.Buffer
	w := NewWriter(&gotBuf)
	w.UseCRLF = useCRLF
	if err := w.WriteAll(records); err != nil {
		t.Fatalf("heroparser WriteAll error: %v", err)
	}
	if err := w.Error(); err != nil {
		t.Fatalf("heroparser Flush error: %v", err)
	}

	if stdBuf.String() != gotBuf.String() {
		t.Errorf("output mismatch:\nencoding/csv=%q\nheroparser  =%q", stdBuf.String(), gotBuf.String())
	}
}

func generateSimpleCSV(numRows, numCols int) []byte {
	var buf bytes.Buffer
	for i := 0; i < numRows; i++ {
		for j := 0; j < numCols; j++ {
			if j > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString("field")
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func generateQuotedCSV(numRows, numCols int) []byte {
	var buf bytes.Buffer
	for i := 0; i < numRows; i++ {
		for j := 0; j < numCols; j++ {
			if j > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(`"field,with,commas"`)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
