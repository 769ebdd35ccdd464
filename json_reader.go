package odatabatch

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// jsonRequestElement mirrors one entry of a JSON batch's "requests" array.
// Unknown properties are ignored; property names match case-insensitively,
// both per encoding/json's default behavior.
type jsonRequestElement struct {
	ID             string            `json:"id"`
	Method         string            `json:"method"`
	URL            string            `json:"url"`
	AtomicityGroup string            `json:"atomicityGroup"`
	DependsOn      []string          `json:"dependsOn"`
	Headers        map[string]string `json:"headers"`
	Body           json.RawMessage   `json:"body"`
}

// jsonResponseElement mirrors one entry of a JSON batch's "responses" array.
type jsonResponseElement struct {
	ID      string            `json:"id"`
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    json.RawMessage   `json:"body"`
}

type jsonElement struct {
	req  *jsonRequestElement
	resp *jsonResponseElement
}

// jsonReader streams a JSON batch document one array element at a time,
// buffering exactly one element ahead of what has been consumed so the
// façade can decide on atomicity-group transitions before yielding it.
type jsonReader struct {
	dec              *json.Decoder
	isRequestPayload bool
	arrayDone        bool
	pending          *jsonElement
	pendingSet       bool
	seenIDs          map[string]bool
}

func newJSONReader(r io.Reader) (*jsonReader, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, wrapError(KindMalformedFraming, err, "failed to read JSON batch document")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, newError(KindMalformedFraming, "JSON batch document must be an object")
	}
	if !dec.More() {
		return nil, newError(KindMissingRequiredProperty, "JSON batch object has neither requests nor responses")
	}
	keyTok, err := dec.Token()
	if err != nil {
		return nil, wrapError(KindMalformedFraming, err, "failed to read top-level property name")
	}
	key, ok := keyTok.(string)
	if !ok {
		return nil, newError(KindMalformedFraming, "expected a JSON property name")
	}
	var isReq bool
	switch strings.ToLower(key) {
	case "requests":
		isReq = true
	case "responses":
		isReq = false
	default:
		return nil, newError(KindUnexpectedTopLevelProperty, "unexpected top-level property %q", key)
	}
	arrTok, err := dec.Token()
	if err != nil {
		return nil, wrapError(KindMalformedFraming, err, "failed to read %q array", key)
	}
	if d, ok := arrTok.(json.Delim); !ok || d != '[' {
		return nil, newError(KindMalformedFraming, "%q must be a JSON array", key)
	}
	return &jsonReader{dec: dec, isRequestPayload: isReq, seenIDs: make(map[string]bool)}, nil
}

// peek ensures and returns the next buffered element, or nil when the
// array is exhausted. It does not advance past the element.
func (j *jsonReader) peek() (*jsonElement, error) {
	if j.pendingSet {
		return j.pending, nil
	}
	if j.arrayDone || !j.dec.More() {
		j.arrayDone = true
		return nil, nil
	}

	el := &jsonElement{}
	if j.isRequestPayload {
		var req jsonRequestElement
		if err := j.dec.Decode(&req); err != nil {
			return nil, wrapError(KindMalformedFraming, err, "invalid request element")
		}
		if req.ID == "" {
			return nil, newError(KindMissingRequiredProperty, "request element missing id")
		}
		if req.Method == "" {
			return nil, newError(KindMissingRequiredProperty, "request element %q missing method", req.ID)
		}
		if req.URL == "" {
			return nil, newError(KindMissingRequiredProperty, "request element %q missing url", req.ID)
		}
		if j.seenIDs[req.ID] {
			return nil, newError(KindDuplicateContentID, "duplicate request id %q", req.ID)
		}
		j.seenIDs[req.ID] = true
		req.Method = strings.ToUpper(req.Method)
		el.req = &req
	} else {
		var resp jsonResponseElement
		if err := j.dec.Decode(&resp); err != nil {
			return nil, wrapError(KindMalformedFraming, err, "invalid response element")
		}
		if resp.Status == 0 {
			return nil, newError(KindMissingRequiredProperty, "response element missing status")
		}
		if resp.ID == "" {
			resp.ID = syntheticResponseID()
		}
		el.resp = &resp
	}

	j.pending = el
	j.pendingSet = true
	return el, nil
}

func (j *jsonReader) consume() {
	j.pendingSet = false
	j.pending = nil
}

func headersFromMap(m map[string]string) http.Header {
	h := make(http.Header, len(m))
	for k, v := range m {
		h.Set(k, v)
	}
	return h
}

// jsonBodyStream exposes a JSON batch element's body as bytes. A JSON
// string value is re-emitted as its raw (unescaped) text when the headers
// declare a textual content type; anything else -- an object, array, or a
// string with no textual content type -- is re-emitted as the JSON text
// that represented it, byte for byte.
func jsonBodyStream(raw json.RawMessage, headers http.Header) io.Reader {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return bytes.NewReader(nil)
	}
	if trimmed[0] == '"' && isTextualContentType(headers.Get("Content-Type")) {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return strings.NewReader(s)
		}
	}
	return bytes.NewReader(raw)
}

func isTextualContentType(ct string) bool {
	if ct == "" {
		return false
	}
	ct = strings.ToLower(ct)
	return strings.HasPrefix(ct, "text/") || strings.Contains(ct, "charset=")
}
