// Package multipart implements the RFC-2046-style multipart/mixed
// encoding used to batch several messages onto one HTTP body, in both
// directions: encode for publish of >1 part and receive of >1 message,
// parse for publish bodies the client already framed as multipart.
//
// This is a small, purpose-built codec rather than net/mime/multipart:
// the detection and folding rules below are more lenient than RFC 2046
// strictly requires, matching what real publishers send.
package multipart

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Part is one (headers, body) pair, either about to be encoded or just
// parsed out of a body.
type Part struct {
	Header Header
	Body   []byte
}

// Header is an ordered set of header lines. Encoding walks names in
// insertion order; parsing appends in the order headers were seen.
type Header struct {
	names  []string
	values map[string]string
}

// NewHeader returns an empty, ready-to-use Header.
func NewHeader() Header {
	return Header{values: make(map[string]string)}
}

// Set records a header, lower-casing the name as encode requires.
func (h *Header) Set(name, value string) {
	name = strings.ToLower(name)
	if _, ok := h.values[name]; !ok {
		h.names = append(h.names, name)
	}
	h.values[name] = value
}

// Get returns the header value and whether it was present.
func (h Header) Get(name string) (string, bool) {
	v, ok := h.values[strings.ToLower(name)]
	return v, ok
}

// ErrorKind distinguishes the ways a multipart body can fail to parse.
type ErrorKind int

const (
	ErrChunk ErrorKind = iota
	ErrHeaderName
	ErrHeaderValue
)

// Error is the single "invalid multipart" error kind from the component
// design, with the subkind preserved for diagnostics.
type Error struct {
	Kind ErrorKind
	msg  string
}

func (e *Error) Error() string { return e.msg }

func newErr(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Encode writes parts as a multipart/mixed body and returns the boundary
// value (a fresh UUID string, with no "--" prefix — that form is used
// directly as the boundary= parameter of a Content-Type header) alongside
// the framed bytes.
func Encode(parts []Part) (boundary string, body []byte) {
	boundary = uuid.New().String()
	full := "--" + boundary

	var buf bytes.Buffer
	for _, p := range parts {
		buf.WriteString(full)
		buf.WriteString("\r\n")
		for _, name := range p.Header.names {
			buf.WriteString(name)
			buf.WriteString(": ")
			buf.WriteString(p.Header.values[name])
			buf.WriteString("\r\n")
		}
		buf.WriteString("\r\n")
		buf.Write(p.Body)
		buf.WriteString("\r\n")
	}
	buf.WriteString(full)
	buf.WriteString("--")
	return boundary, buf.Bytes()
}

// IsMultipart reports whether contentType names a multipart/mixed body,
// returning the full boundary (prefixed with "--", ready to hand to
// Parse) if so. The sub-type only needs to start with "mixed"; the
// boundary parameter may be quoted; other parameters are tolerated in
// any order.
func IsMultipart(contentType string) (string, bool) {
	top, rest, ok := strings.Cut(contentType, "/")
	if !ok || !strings.EqualFold(strings.TrimSpace(top), "multipart") {
		return "", false
	}
	params := strings.Split(rest, ";")
	if len(params) == 0 || !strings.HasPrefix(strings.TrimSpace(params[0]), "mixed") {
		return "", false
	}
	for _, p := range params[1:] {
		name, value, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		if strings.TrimSpace(strings.ToLower(name)) != "boundary" {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"`)
		if value == "" {
			return "", false
		}
		return "--" + value, true
	}
	return "", false
}

// Parse splits body into its constituent parts, given the full boundary
// (including the leading "--") IsMultipart returned.
func Parse(boundary []byte, body []byte) ([]Part, error) {
	idx := bytes.Index(body, boundary)
	if idx < 0 {
		return nil, newErr(ErrChunk, "boundary %q not found in body", boundary)
	}
	rest := body[idx+len(boundary):]

	var parts []Part
	for {
		rest = skipLinearWhitespace(rest)
		if bytes.HasPrefix(rest, []byte("--")) {
			return parts, nil
		}
		if !bytes.HasPrefix(rest, []byte("\r\n")) {
			return nil, newErr(ErrChunk, "missing CRLF after boundary")
		}
		rest = rest[2:]

		// An immediate CRLF after the boundary line's CRLF is an empty
		// header block.
		var headerBlock []byte
		if bytes.HasPrefix(rest, []byte("\r\n")) {
			rest = rest[2:]
		} else {
			headerEnd := bytes.Index(rest, []byte("\r\n\r\n"))
			if headerEnd < 0 {
				return nil, newErr(ErrChunk, "missing header/body separator")
			}
			headerBlock = rest[:headerEnd]
			rest = rest[headerEnd+4:]
		}

		header, err := parseHeaderBlock(headerBlock)
		if err != nil {
			return nil, err
		}

		next := bytes.Index(rest, boundary)
		if next < 0 {
			return nil, newErr(ErrChunk, "missing closing boundary for part")
		}
		partBody := rest[:next]
		partBody = bytes.TrimSuffix(partBody, []byte("\r\n"))
		parts = append(parts, Part{Header: header, Body: partBody})

		rest = rest[next+len(boundary):]
	}
}

// skipLinearWhitespace tolerates SP, HTAB, or CRLF-followed-by-SP/HTAB
// between a boundary and the CRLF that ends its line.
func skipLinearWhitespace(b []byte) []byte {
	for len(b) > 0 {
		switch {
		case b[0] == ' ' || b[0] == '\t':
			b = b[1:]
		case len(b) >= 3 && b[0] == '\r' && b[1] == '\n' && (b[2] == ' ' || b[2] == '\t'):
			b = b[3:]
		default:
			return b
		}
	}
	return b
}

func parseHeaderBlock(block []byte) (Header, error) {
	h := NewHeader()
	if len(block) == 0 {
		return h, nil
	}
	lines := splitHeaderLines(block)
	for _, line := range lines {
		name, value, ok := bytes.Cut(line, []byte(":"))
		if !ok {
			return Header{}, newErr(ErrHeaderName, "header line missing colon: %q", line)
		}
		if !validHeaderName(name) {
			return Header{}, newErr(ErrHeaderName, "invalid header name: %q", name)
		}
		trimmedValue := bytes.TrimLeft(value, " \t")
		if !validHeaderValue(trimmedValue) {
			return Header{}, newErr(ErrHeaderValue, "invalid header value: %q", trimmedValue)
		}
		h.Set(string(name), string(trimmedValue))
	}
	return h, nil
}

// splitHeaderLines splits a header block into logical lines, collapsing
// folded continuation lines (ones starting with SP or HTAB) into their
// parent line with a single separating space.
func splitHeaderLines(block []byte) [][]byte {
	var out [][]byte
	for _, raw := range bytes.Split(block, []byte("\r\n")) {
		if len(raw) > 0 && (raw[0] == ' ' || raw[0] == '\t') && len(out) > 0 {
			folded := bytes.TrimLeft(raw, " \t")
			out[len(out)-1] = append(append(out[len(out)-1], ' '), folded...)
			continue
		}
		out = append(out, raw)
	}
	return out
}

func validHeaderName(name []byte) bool {
	if len(name) == 0 {
		return false
	}
	for _, b := range name {
		if b <= 0x20 || b == 0x7f || b == ':' {
			return false
		}
	}
	return true
}

func validHeaderValue(value []byte) bool {
	for _, b := range value {
		if b == '\r' || b == '\n' || b == 0 {
			return false
		}
	}
	return true
}
