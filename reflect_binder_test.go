package heroparser

import (
	"strings"
	"testing"
)

type taggedPerson struct {
	Name string `csv:"name"`
	Age  int    `csv:"age"`
}

func TestReflectBinderBindRow(t *testing.T) {
	r := NewReader(strings.NewReader("name,age\nGrace,85\n"))
	header, err := r.Read()
	if err != nil {
		t.Fatalf("header read error: %v", err)
	}
	rb := NewReflectBinder[taggedPerson](header, false)
	if _, err := r.NextRow(); err != nil {
		t.Fatalf("NextRow error: %v", err)
	}
	p, err := rb.BindRow(r)
	if err != nil {
		t.Fatalf("BindRow error: %v", err)
	}
	if p.Name != "Grace" || p.Age != 85 {
		t.Errorf("got %+v, want {Grace 85}", p)
	}
}

func TestReflectBinderCaseInsensitiveHeader(t *testing.T) {
	r := NewReader(strings.NewReader("NAME,AGE\nAda,36\n"))
	header, _ := r.Read()
	rb := NewReflectBinder[taggedPerson](header, false)
	if _, err := r.NextRow(); err != nil {
		t.Fatalf("NextRow error: %v", err)
	}
	p, err := rb.BindRow(r)
	if err != nil {
		t.Fatalf("BindRow error: %v", err)
	}
	if p.Name != "Ada" {
		t.Errorf("Name = %q, want %q", p.Name, "Ada")
	}
}

func TestReflectBinderUnboundColumnsIgnored(t *testing.T) {
	r := NewReader(strings.NewReader("name,age,extra\nAda,36,ignored\n"))
	header, _ := r.Read()
	rb := NewReflectBinder[taggedPerson](header, false)
	if _, err := r.NextRow(); err != nil {
		t.Fatalf("NextRow error: %v", err)
	}
	p, err := rb.BindRow(r)
	if err != nil {
		t.Fatalf("BindRow error: %v", err)
	}
	if p.Name != "Ada" || p.Age != 36 {
		t.Errorf("got %+v, want {Ada 36}", p)
	}
}
