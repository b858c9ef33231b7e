package heroparser

import "testing"

func emit(t *testing.T, data string) *emission {
	t.Helper()
	buf := []byte(data)
	sr := scanBuffer(buf, ',')
	defer sr.release()
	e, err := emitBuffer(buf, sr, 0, 0, 0, 0, true)
	if err != nil {
		t.Fatalf("emitBuffer(%q) error: %v", data, err)
	}
	return e
}

func fieldText(buf []byte, e *emission, row, col int) string {
	r := e.rows[row]
	f := e.fields[r.firstField+col]
	return string(buf[f.start : f.start+f.length])
}

func TestEmitBufferSimple(t *testing.T) {
	data := "a,b,c\nd,e,f\n"
	e := emit(t, data)
	if len(e.rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(e.rows))
	}
	want := [][]string{{"a", "b", "c"}, {"d", "e", "f"}}
	buf := []byte(data)
	for ri, row := range want {
		for ci, col := range row {
			if got := fieldText(buf, e, ri, ci); got != col {
				t.Errorf("row %d col %d = %q, want %q", ri, ci, got, col)
			}
		}
	}
}

func TestEmitBufferNoTrailingNewline(t *testing.T) {
	data := "a,b\nc,d"
	e := emit(t, data)
	if len(e.rows) != 2 {
		t.Fatalf("rows = %d, want 2 (final row with no trailing newline)", len(e.rows))
	}
	if e.rows[1].fieldCount != 2 {
		t.Errorf("final row field count = %d, want 2", e.rows[1].fieldCount)
	}
}

func TestEmitBufferQuotedFieldWithCommaAndEscapedQuote(t *testing.T) {
	data := `a,"b,""c""",d` + "\n"
	e := emit(t, data)
	buf := []byte(data)
	if len(e.rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(e.rows))
	}
	if e.rows[0].fieldCount != 3 {
		t.Fatalf("fieldCount = %d, want 3", e.rows[0].fieldCount)
	}
	f := e.fields[e.rows[0].firstField+1]
	if !f.isQuoted() {
		t.Error("middle field should be marked quoted")
	}
	if !f.containsQuote() {
		t.Error("middle field should be marked as containing a quote")
	}
	raw := string(buf[f.start : f.start+f.length])
	if raw != `b,""c""` {
		t.Errorf("raw quoted content = %q, want %q", raw, `b,""c""`)
	}
}

func TestEmitBufferBlankLinesSkipped(t *testing.T) {
	data := "a,b\n\n\nc,d\n"
	e := emit(t, data)
	if len(e.rows) != 2 {
		t.Fatalf("rows = %d, want 2 (blank lines produce no row)", len(e.rows))
	}
}

func TestEmitBufferCRLF(t *testing.T) {
	data := "a,b\r\nc,d\r\n"
	e := emit(t, data)
	buf := []byte(data)
	if len(e.rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(e.rows))
	}
	if got := fieldText(buf, e, 0, 1); got != "b" {
		t.Errorf("field = %q, want %q (CR must not be included in field content)", got, "b")
	}
}

func TestEmitBufferResourceLimits(t *testing.T) {
	buf := []byte("a,b,c\n")
	sr := scanBuffer(buf, ',')
	defer sr.release()

	if _, err := emitBuffer(buf, sr, 2, 0, 0, 0, true); err == nil {
		t.Error("expected TooManyColumns limit violation, got nil")
	} else if lv, ok := err.(limitViolation); !ok || lv.code != ErrCodeTooManyColumns {
		t.Errorf("error = %v, want limitViolation{ErrCodeTooManyColumns}", err)
	} else if lv.lineNum != 1 || lv.columnNumber != 3 {
		t.Errorf("limitViolation = %+v, want lineNum=1 columnNumber=3", lv)
	}

	wide := []byte("ab,c\n")
	sr2 := scanBuffer(wide, ',')
	defer sr2.release()
	if _, err := emitBuffer(wide, sr2, 0, 0, 1, 0, true); err == nil {
		t.Error("expected FieldTooLarge limit violation, got nil")
	} else if lv, ok := err.(limitViolation); !ok || lv.code != ErrCodeFieldTooLarge {
		t.Errorf("error = %v, want limitViolation{ErrCodeFieldTooLarge}", err)
	} else if lv.lineNum != 1 || lv.rowNumber != 1 || lv.columnNumber != 1 {
		t.Errorf("limitViolation = %+v, want lineNum=1 rowNumber=1 columnNumber=1", lv)
	}
}

func TestEmitBufferResourceLimitsReportLineNumber(t *testing.T) {
	buf := []byte("a,b\na,a,a\n")
	sr := scanBuffer(buf, ',')
	defer sr.release()

	_, err := emitBuffer(buf, sr, 2, 0, 0, 0, true)
	if err == nil {
		t.Fatal("expected TooManyColumns limit violation, got nil")
	}
	lv, ok := err.(limitViolation)
	if !ok || lv.code != ErrCodeTooManyColumns {
		t.Fatalf("error = %v, want limitViolation{ErrCodeTooManyColumns}", err)
	}
	if lv.lineNum != 2 {
		t.Errorf("lineNum = %d, want 2 (violation is on the second row)", lv.lineNum)
	}
	if lv.rowNumber != 2 {
		t.Errorf("rowNumber = %d, want 2", lv.rowNumber)
	}
}

func TestEmitBufferEmptyInput(t *testing.T) {
	sr := scanBuffer(nil, ',')
	defer sr.release()
	e, err := emitBuffer(nil, sr, 0, 0, 0, 0, true)
	if err != nil {
		t.Fatalf("emitBuffer(nil) error: %v", err)
	}
	if len(e.rows) != 0 || len(e.fields) != 0 {
		t.Errorf("expected no rows/fields for empty input, got rows=%d fields=%d", len(e.rows), len(e.fields))
	}
}

func TestEmitBufferBlankRowsKeptWhenSkipEmptyRowsFalse(t *testing.T) {
	data := "\n\na,b\n"
	buf := []byte(data)
	sr := scanBuffer(buf, ',')
	defer sr.release()

	e, err := emitBuffer(buf, sr, 0, 0, 0, 0, false)
	if err != nil {
		t.Fatalf("emitBuffer(%q) error: %v", data, err)
	}
	if len(e.rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(e.rows))
	}
	if e.rows[0].fieldCount != 1 || e.rows[1].fieldCount != 1 {
		t.Errorf("blank rows should carry one empty column each, got fieldCount %d, %d", e.rows[0].fieldCount, e.rows[1].fieldCount)
	}
	if got := fieldText(buf, e, 0, 0); got != "" {
		t.Errorf("blank row field = %q, want empty", got)
	}
	if got := fieldText(buf, e, 1, 0); got != "" {
		t.Errorf("blank row field = %q, want empty", got)
	}
	if e.rows[2].fieldCount != 2 {
		t.Errorf("final row fieldCount = %d, want 2", e.rows[2].fieldCount)
	}
	if got := fieldText(buf, e, 2, 0); got != "a" {
		t.Errorf("final row field 0 = %q, want %q", got, "a")
	}
	if e.rows[0].lineNum != 1 || e.rows[1].lineNum != 2 || e.rows[2].lineNum != 3 {
		t.Errorf("lineNum tracking = %d, %d, %d, want 1, 2, 3", e.rows[0].lineNum, e.rows[1].lineNum, e.rows[2].lineNum)
	}
}
