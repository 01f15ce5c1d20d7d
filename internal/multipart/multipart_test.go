package multipart

import (
	"bytes"
	"testing"
)

func mkPart(contentType, body string) Part {
	h := NewHeader()
	h.Set("Content-Type", contentType)
	return Part{Header: h, Body: []byte(body)}
}

func TestEncodeParseRoundTrip(t *testing.T) {
	parts := []Part{
		mkPart("text/plain", "a"),
		mkPart("text/plain", "b"),
	}

	boundary, body := Encode(parts)
	full := "--" + boundary

	got, err := Parse([]byte(full), body)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(got) != len(parts) {
		t.Fatalf("expected %d parts, got %d", len(parts), len(got))
	}
	for i, p := range got {
		if !bytes.Equal(p.Body, parts[i].Body) {
			t.Errorf("part %d body = %q, want %q", i, p.Body, parts[i].Body)
		}
		ct, ok := p.Header.Get("content-type")
		if !ok || ct != "text/plain" {
			t.Errorf("part %d content-type = %q, ok=%v", i, ct, ok)
		}
	}
}

func TestEncodeEmpty(t *testing.T) {
	boundary, body := Encode(nil)
	want := "--" + boundary + "--"
	if string(body) != want {
		t.Fatalf("empty encode = %q, want %q", body, want)
	}
}

func TestIsMultipart(t *testing.T) {
	cases := []struct {
		contentType string
		wantOK      bool
		wantBoundary string
	}{
		{"multipart/mixed; boundary=abc", true, "--abc"},
		{`multipart/mixed; boundary="abc"`, true, "--abc"},
		{"multipart/mixed;boundary=abc;charset=utf-8", true, "--abc"},
		{"multipart/mixed", false, ""},
		{"text/plain", false, ""},
		{"multipart/alternative; boundary=abc", false, ""},
	}
	for _, c := range cases {
		boundary, ok := IsMultipart(c.contentType)
		if ok != c.wantOK {
			t.Errorf("IsMultipart(%q) ok = %v, want %v", c.contentType, ok, c.wantOK)
			continue
		}
		if ok && boundary != c.wantBoundary {
			t.Errorf("IsMultipart(%q) boundary = %q, want %q", c.contentType, boundary, c.wantBoundary)
		}
	}
}

func TestParseHeaderFolding(t *testing.T) {
	boundary := "xyz"
	body := []byte("--xyz\r\nX-Custom: hello\r\n world\r\n\r\nbody\r\n--xyz--")
	parts, err := Parse([]byte("--"+boundary), body)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(parts))
	}
	v, ok := parts[0].Header.Get("x-custom")
	if !ok || v != "hello world" {
		t.Fatalf("folded header = %q, ok=%v", v, ok)
	}
}

func TestParseEmptyHeaderBlock(t *testing.T) {
	body := []byte("--xyz\r\n\r\nbody\r\n--xyz--")
	parts, err := Parse([]byte("--xyz"), body)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(parts) != 1 || string(parts[0].Body) != "body" {
		t.Fatalf("unexpected parts: %+v", parts)
	}
}

func TestParseInvalidChunk(t *testing.T) {
	body := []byte("--xyz\r\nnotaheader\r\n--xyz--")
	_, err := Parse([]byte("--xyz"), body)
	if err == nil {
		t.Fatal("expected error for missing header/body separator")
	}
	merr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if merr.Kind != ErrChunk {
		t.Fatalf("expected ErrChunk, got %v", merr.Kind)
	}
}
