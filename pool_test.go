package heroparser

import "testing"

func TestRawBufferPoolRoundTrip(t *testing.T) {
	b := getRawBuffer()
	*b = append(*b, []byte("hello")...)
	putRawBuffer(b)

	b2 := getRawBuffer()
	if len(*b2) != 0 {
		t.Errorf("len(*b2) = %d, want 0 (pooled buffers are truncated on return)", len(*b2))
	}
	putRawBuffer(b2)
}

func TestUnquoteScratchPoolRoundTrip(t *testing.T) {
	s := getUnquoteScratch()
	*s = append(*s, 'x', 'y')
	putUnquoteScratch(s)

	s2 := getUnquoteScratch()
	if len(*s2) != 0 {
		t.Errorf("len(*s2) = %d, want 0", len(*s2))
	}
	putUnquoteScratch(s2)
}

func TestColumnEndTablePoolRoundTrip(t *testing.T) {
	s := getColumnEndTable()
	*s = append(*s, 1, 2, 3)
	putColumnEndTable(s)

	s2 := getColumnEndTable()
	if len(*s2) != 0 {
		t.Errorf("len(*s2) = %d, want 0", len(*s2))
	}
	putColumnEndTable(s2)
}

func TestOutputBufferPoolRoundTrip(t *testing.T) {
	b := getOutputBuffer()
	*b = append(*b, []byte("payload")...)
	putOutputBuffer(b)

	b2 := getOutputBuffer()
	if len(*b2) != 0 {
		t.Errorf("len(*b2) = %d, want 0", len(*b2))
	}
	putOutputBuffer(b2)
}

func TestPutNilPoolBufferIsNoOp(t *testing.T) {
	putRawBuffer(nil)
	putUnquoteScratch(nil)
	putColumnEndTable(nil)
	putOutputBuffer(nil)
}

func TestScanResultPoolRelease(t *testing.T) {
	sr := getScanResult()
	sr.quoteMasks = append(sr.quoteMasks, 1, 2, 3)
	sr.hasQuotes = true
	sr.release()

	sr2 := getScanResult()
	if len(sr2.quoteMasks) != 0 || sr2.hasQuotes {
		t.Errorf("scanResult not reset on release: quoteMasks=%v hasQuotes=%v", sr2.quoteMasks, sr2.hasQuotes)
	}
	sr2.release()
}

func TestEmissionPoolRelease(t *testing.T) {
	e := getEmission()
	e.fields = append(e.fields, fieldInfo{start: 1, length: 2})
	e.rows = append(e.rows, rowInfo{fieldCount: 1})
	e.release()

	e2 := getEmission()
	if len(e2.fields) != 0 || len(e2.rows) != 0 {
		t.Errorf("emission not reset on release: fields=%v rows=%v", e2.fields, e2.rows)
	}
	e2.release()
}
