package odatabatch

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestJSONReader_RequestsArray(t *testing.T) {
	doc := `{"requests":[
		{"id":"1","method":"GET","url":"/Customers('ALFKI')"},
		{"id":"2","method":"POST","url":"/Orders","atomicityGroup":"g1"}
	]}`

	jr, err := newJSONReader(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("newJSONReader: %v", err)
	}
	if !jr.isRequestPayload {
		t.Fatal("expected a requests payload")
	}

	el, err := jr.peek()
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if el.req.ID != "1" || el.req.Method != "GET" {
		t.Fatalf("unexpected first element: %+v", el.req)
	}
	jr.consume()

	el, err = jr.peek()
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if el.req.ID != "2" || el.req.AtomicityGroup != "g1" {
		t.Fatalf("unexpected second element: %+v", el.req)
	}
	jr.consume()

	el, err = jr.peek()
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if el != nil {
		t.Fatalf("expected end of array, got %+v", el)
	}
}

func TestJSONReader_MissingMethodFails(t *testing.T) {
	doc := `{"requests":[{"id":"1","url":"/Customers"}]}`

	jr, err := newJSONReader(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("newJSONReader: %v", err)
	}
	_, err = jr.peek()
	if !errors.Is(err, ErrMissingRequiredProperty) {
		t.Fatalf("err = %v, want ErrMissingRequiredProperty", err)
	}
}

func TestJSONReader_DuplicateIDFails(t *testing.T) {
	doc := `{"requests":[{"id":"1","method":"GET","url":"/A"},{"id":"1","method":"GET","url":"/B"}]}`

	jr, err := newJSONReader(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("newJSONReader: %v", err)
	}
	if _, err := jr.peek(); err != nil {
		t.Fatalf("first peek: %v", err)
	}
	jr.consume()

	_, err = jr.peek()
	if !errors.Is(err, ErrDuplicateContentID) {
		t.Fatalf("err = %v, want ErrDuplicateContentID", err)
	}
}

func TestJSONReader_UnexpectedTopLevelProperty(t *testing.T) {
	_, err := newJSONReader(strings.NewReader(`{"foo":[]}`))
	if !errors.Is(err, ErrUnexpectedTopLevelProperty) {
		t.Fatalf("err = %v, want ErrUnexpectedTopLevelProperty", err)
	}
}

func TestJSONReader_ResponsesArray_SynthesizesMissingID(t *testing.T) {
	doc := `{"responses":[{"status":200},{"id":"r2","status":404}]}`

	jr, err := newJSONReader(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("newJSONReader: %v", err)
	}

	el, err := jr.peek()
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if el.resp.ID == "" {
		t.Fatal("expected a synthesized id for the first response")
	}
	jr.consume()

	el, err = jr.peek()
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if el.resp.ID != "r2" {
		t.Fatalf("ID = %q, want %q", el.resp.ID, "r2")
	}
}

func TestJSONBodyStream_TextualStringIsUnescaped(t *testing.T) {
	headers := headersFromMap(map[string]string{"Content-Type": "text/plain"})
	raw := []byte(`"hello\nworld"`)

	data, err := io.ReadAll(jsonBodyStream(raw, headers))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "hello\nworld" {
		t.Fatalf("body = %q, want %q", data, "hello\nworld")
	}
}

func TestJSONBodyStream_ObjectIsVerbatim(t *testing.T) {
	headers := headersFromMap(map[string]string{"Content-Type": "application/json"})
	raw := []byte(`{"Name":"Alice"}`)

	data, err := io.ReadAll(jsonBodyStream(raw, headers))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != `{"Name":"Alice"}` {
		t.Fatalf("body = %q, want verbatim JSON", data)
	}
}

func TestJSONBodyStream_EmptyBody(t *testing.T) {
	data, err := io.ReadAll(jsonBodyStream(nil, nil))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("body = %q, want empty", data)
	}
}
