package odatabatch

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestBatchReader_StreamAbortedAfterAdvance(t *testing.T) {
	payload := "" +
		"--batch_4\r\n" +
		"Content-Type: application/http\r\n" +
		"\r\n" +
		"GET /A HTTP/1.1\r\n" +
		"\r\n" +
		"--batch_4\r\n" +
		"Content-Type: application/http\r\n" +
		"\r\n" +
		"GET /B HTTP/1.1\r\n" +
		"\r\n" +
		"--batch_4--\r\n"

	r, err := OpenRequest(strings.NewReader(payload), "multipart/mixed; boundary=batch_4", NewSettings())
	if err != nil {
		t.Fatalf("OpenRequest: %v", err)
	}

	if _, err := r.Advance(); err != nil {
		t.Fatalf("first Advance: %v", err)
	}
	msg1, err := r.CreateOperationRequest()
	if err != nil {
		t.Fatalf("CreateOperationRequest: %v", err)
	}
	body1, err := msg1.OpenBody()
	if err != nil {
		t.Fatalf("OpenBody: %v", err)
	}
	if _, err := io.ReadAll(body1); err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	if _, err := r.Advance(); err != nil {
		t.Fatalf("second Advance: %v", err)
	}

	if _, err := msg1.OpenBody(); !errors.Is(err, ErrStreamAborted) {
		t.Fatalf("err = %v, want ErrStreamAborted", err)
	}
}

func TestBatchReader_AdvanceFailsWithLiveStream(t *testing.T) {
	payload := "" +
		"--batch_5\r\n" +
		"Content-Type: application/http\r\n" +
		"\r\n" +
		"GET /A HTTP/1.1\r\n" +
		"\r\n" +
		"--batch_5--\r\n"

	r, err := OpenRequest(strings.NewReader(payload), "multipart/mixed; boundary=batch_5", NewSettings())
	if err != nil {
		t.Fatalf("OpenRequest: %v", err)
	}

	if _, err := r.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	msg, err := r.CreateOperationRequest()
	if err != nil {
		t.Fatalf("CreateOperationRequest: %v", err)
	}
	if _, err := msg.OpenBody(); err != nil {
		t.Fatalf("OpenBody: %v", err)
	}

	if _, err := r.Advance(); !errors.Is(err, ErrInvalidReaderState) {
		t.Fatalf("err = %v, want ErrInvalidReaderState", err)
	}
	if r.State() != StateException {
		t.Fatalf("state = %v, want Exception", r.State())
	}
}

func TestBatchReader_CreateOperationRequestRequiredBeforeAdvance(t *testing.T) {
	payload := "" +
		"--batch_6\r\n" +
		"Content-Type: application/http\r\n" +
		"\r\n" +
		"GET /A HTTP/1.1\r\n" +
		"\r\n" +
		"--batch_6--\r\n"

	r, err := OpenRequest(strings.NewReader(payload), "multipart/mixed; boundary=batch_6", NewSettings())
	if err != nil {
		t.Fatalf("OpenRequest: %v", err)
	}

	if _, err := r.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	if _, err := r.Advance(); !errors.Is(err, ErrInvalidReaderState) {
		t.Fatalf("err = %v, want ErrInvalidReaderState", err)
	}
}
