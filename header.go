package odatabatch

import (
	"io"
	"net/http"
	"strings"
)

// singleValueHeaders must appear at most once in a header block; a repeat
// is a framing error rather than an implicit list.
var singleValueHeaders = map[string]bool{
	"Content-Id":                true,
	"Content-Type":              true,
	"Content-Transfer-Encoding": true,
}

// allowedContentTransferEncodings are the only encodings a batch part may
// declare; anything else would require decoding the body before it can be
// handed to the caller as a byte-identical sub-stream.
var allowedContentTransferEncodings = map[string]bool{
	"binary": true,
	"8bit":   true,
}

// parseHeaderBlock reads a run of "Name: value" lines up to and including
// the blank line that terminates a MIME envelope or an inner HTTP header
// block.
func parseHeaderBlock(lr *lineReader) (http.Header, error) {
	h := http.Header{}
	for {
		line, err := lr.readLine()
		if err != nil {
			if err == io.EOF {
				return nil, newError(KindMalformedFraming, "stream ended inside a header block")
			}
			return nil, wrapError(KindMalformedFraming, err, "failed reading a header block")
		}
		if len(line) == 0 {
			break
		}
		name, value, ok := splitHeaderLine(string(line))
		if !ok {
			return nil, newError(KindMalformedFraming, "invalid header line %q", line)
		}
		canon := http.CanonicalHeaderKey(name)
		if singleValueHeaders[canon] {
			if h.Get(canon) != "" {
				return nil, newError(KindMalformedFraming, "duplicate header %s", canon)
			}
			h.Set(canon, value)
			continue
		}
		if existing := h.Get(canon); existing != "" {
			h.Set(canon, existing+", "+value)
		} else {
			h.Set(canon, value)
		}
	}
	if cte := h.Get("Content-Transfer-Encoding"); cte != "" && !allowedContentTransferEncodings[strings.ToLower(cte)] {
		return nil, newError(KindMalformedFraming, "unsupported Content-Transfer-Encoding %q", cte)
	}
	return h, nil
}

func splitHeaderLine(line string) (name, value string, ok bool) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", "", false
	}
	name = strings.TrimSpace(line[:idx])
	if name == "" {
		return "", "", false
	}
	value = strings.TrimSpace(line[idx+1:])
	return name, value, true
}
