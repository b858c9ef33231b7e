package heroparser

import (
	"bytes"
	"testing"
)

func TestWriterAgainstStdlib(t *testing.T) {
	tests := []struct {
		name    string
		records [][]string
		useCRLF bool
	}{
		{"simple", [][]string{{"a", "b", "c"}, {"1", "2", "3"}}, false},
		{"needs quoting", [][]string{{"a,b", `c"d`, "e\nf"}}, false},
		{"crlf", [][]string{{"a", "b"}}, true},
		{"leading space forces quoting", [][]string{{" leading", "trailing "}}, false},
		{"empty fields", [][]string{{"", "a", ""}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compareWriterWithStdlib(t, tt.records, tt.useCRLF)
		})
	}
}

func TestWriterQuotePolicyAlways(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriterWithOptions(&buf, WriterOptions{QuotePolicy: QuoteAlways})
	if err := w.Write([]string{"a", "b"}); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	w.Flush()
	if got := buf.String(); got != "\"a\",\"b\"\n" {
		t.Errorf("got %q, want %q", got, "\"a\",\"b\"\n")
	}
}

func TestWriterQuotePolicyNever(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriterWithOptions(&buf, WriterOptions{QuotePolicy: QuoteNever})
	if err := w.Write([]string{"a,b", "c"}); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	w.Flush()
	if got := buf.String(); got != "a,b,c\n" {
		t.Errorf("got %q, want %q (QuoteNever emits literal bytes)", got, "a,b,c\n")
	}
}

func TestWriterInjectionProtectionSanitize(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriterWithOptions(&buf, WriterOptions{QuotePolicy: QuoteWhenNeeded, InjectionProtection: InjectionProtectionSanitize})
	if err := w.Write([]string{"=SUM(A1:A2)"}); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	w.Flush()
	if got := buf.String(); got != "'=SUM(A1:A2)\n" {
		t.Errorf("got %q, want a leading single-quote prefix", got)
	}
}

func TestWriterInjectionProtectionEscapeWithQuote(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriterWithOptions(&buf, WriterOptions{QuotePolicy: QuoteWhenNeeded, InjectionProtection: InjectionProtectionEscapeWithQuote})
	if err := w.Write([]string{"=cmd"}); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	w.Flush()
	if got := buf.String(); got != "\"=cmd\"\n" {
		t.Errorf("got %q, want a forced-quoted field", got)
	}
}

func TestWriterInjectionProtectionEscapeWithTab(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriterWithOptions(&buf, WriterOptions{QuotePolicy: QuoteWhenNeeded, InjectionProtection: InjectionProtectionEscapeWithTab})
	if err := w.Write([]string{"+1+1"}); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	w.Flush()
	if got := buf.String(); got != "\t+1+1\n" {
		t.Errorf("got %q, want a leading tab prefix", got)
	}
}

func TestWriterNullRepresentation(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriterWithOptions(&buf, WriterOptions{QuotePolicy: QuoteWhenNeeded, NullRepresentation: `\N`})
	if err := w.WriteNull([]string{"a", "ignored", "c"}, map[int]bool{1: true}); err != nil {
		t.Fatalf("WriteNull error: %v", err)
	}
	w.Flush()
	if got := buf.String(); got != "a,\\N,c\n" {
		t.Errorf("got %q, want %q", got, "a,\\N,c\n")
	}
}

func TestWriterMaxOutputSize(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriterWithOptions(&buf, WriterOptions{QuotePolicy: QuoteWhenNeeded, MaxOutputSize: 4})
	err := w.Write([]string{"toolong"})
	if err == nil {
		t.Fatal("expected OutputTooLarge error, got nil")
	}
	we, ok := err.(*WriteError)
	if !ok || we.Code != ErrCodeOutputTooLarge {
		t.Errorf("error = %v, want *WriteError{Code: ErrCodeOutputTooLarge}", err)
	}
}

func TestWriterLongFieldQuoteDetection(t *testing.T) {
	// Exercise the >= writerVectorThreshold branch of fieldContainsSpecial;
	// on builds without the vector backend this still runs the scalar path.
	long := make([]byte, writerVectorThreshold+10)
	for i := range long {
		long[i] = 'x'
	}
	long[len(long)-1] = ','

	var buf bytes.Buffer
	w := NewWriterWithOptions(&buf, WriterOptions{QuotePolicy: QuoteWhenNeeded})
	if err := w.Write([]string{string(long)}); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	w.Flush()
	if got := buf.String(); got[0] != '"' {
		t.Errorf("expected the long field with a trailing comma to be quoted, got %q", got[:20])
	}
}

func TestWriterErrorLatches(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriterWithOptions(&buf, WriterOptions{QuotePolicy: QuoteWhenNeeded, MaxOutputSize: 1})
	_ = w.Write([]string{"too long for the limit"})
	if w.Error() == nil {
		t.Fatal("expected Error() to report the latched failure")
	}
	if err := w.Write([]string{"a"}); err == nil {
		t.Error("expected subsequent Write to return the latched error")
	}
}
