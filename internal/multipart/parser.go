// Package multipart parses multipart/form-data request bodies at the byte
// level. Part bodies are raw bytes and may contain CRLF sequences; only
// header lines are treated as text.
package multipart

import (
	"bytes"
	"mime"
	"strings"
)

// Part is one named section of a multipart/form-data body.
type Part struct {
	Name        string
	Filename    string
	ContentType string
	Body        []byte
}

// MalformedBodyError reports a structural violation in a multipart body.
type MalformedBodyError struct{ Reason string }

func (e MalformedBodyError) Error() string { return "malformed multipart body: " + e.Reason }

// IsMalformedBody reports whether err indicates an unparseable body (return 400).
func IsMalformedBody(err error) bool {
	_, ok := err.(MalformedBodyError)
	return ok
}

// Boundary extracts the boundary parameter from a Content-Type header value.
func Boundary(contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", MalformedBodyError{Reason: "invalid Content-Type: " + err.Error()}
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return "", MalformedBodyError{Reason: "Content-Type must be multipart/form-data"}
	}
	b := params["boundary"]
	if b == "" {
		return "", MalformedBodyError{Reason: "no boundary in Content-Type"}
	}
	return b, nil
}

var (
	crlf      = []byte("\r\n")
	crlfcrlf  = []byte("\r\n\r\n")
	dashes    = []byte("--")
	formValue = "form-data"
)

// Parse splits body on the "--boundary" delimiter and decodes each segment
// into a Part. Segment order matches appearance in the body; names need not
// be unique. The preamble before the first delimiter and the epilogue after
// the closing "--boundary--" are discarded. Any structural violation yields
// a MalformedBodyError; a malformed part is never silently dropped.
func Parse(body []byte, boundary string) ([]Part, error) {
	if boundary == "" {
		return nil, MalformedBodyError{Reason: "empty boundary"}
	}
	delim := append([]byte("--"), boundary...)
	segments := bytes.Split(body, delim)
	if len(segments) < 2 {
		return nil, MalformedBodyError{Reason: "boundary delimiter not found in body"}
	}
	// segments[0] is the preamble. Each following segment is a part,
	// except the final one which begins with "--" (closing delimiter).
	var parts []Part
	closed := false
	for _, seg := range segments[1:] {
		if bytes.HasPrefix(seg, dashes) {
			closed = true
			break
		}
		p, err := parsePart(seg)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	if !closed {
		return nil, MalformedBodyError{Reason: "missing closing boundary delimiter"}
	}
	return parts, nil
}

// parsePart decodes one delimiter-bounded segment: a CRLF left over from the
// delimiter line, a header block, a blank line, then the raw body up to the
// CRLF that precedes the next delimiter.
func parsePart(seg []byte) (Part, error) {
	seg = bytes.TrimPrefix(seg, crlf)
	headerBlock, rawBody, found := bytes.Cut(seg, crlfcrlf)
	if !found {
		return Part{}, MalformedBodyError{Reason: "part header block has no terminating blank line"}
	}
	p, err := parseHeaders(headerBlock)
	if err != nil {
		return Part{}, err
	}
	// The trailing CRLF belongs to the next delimiter line, not the body.
	p.Body = bytes.TrimSuffix(rawBody, crlf)
	return p, nil
}

func parseHeaders(block []byte) (Part, error) {
	var p Part
	for _, line := range strings.Split(string(block), "\r\n") {
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			return Part{}, MalformedBodyError{Reason: "malformed header line: " + line}
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "content-disposition":
			disp, params, err := mime.ParseMediaType(value)
			if err != nil {
				return Part{}, MalformedBodyError{Reason: "invalid Content-Disposition: " + err.Error()}
			}
			if disp != formValue {
				return Part{}, MalformedBodyError{Reason: "Content-Disposition must be form-data, got " + disp}
			}
			p.Name = params["name"]
			p.Filename = params["filename"]
		case "content-type":
			p.ContentType = value
		}
	}
	if p.Name == "" {
		return Part{}, MalformedBodyError{Reason: "part has no name in Content-Disposition"}
	}
	return p, nil
}

// Lookup returns the first part with the given field name.
func Lookup(parts []Part, name string) (Part, bool) {
	for _, p := range parts {
		if p.Name == name {
			return p, true
		}
	}
	return Part{}, false
}
