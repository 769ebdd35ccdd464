package odatabatch

import (
	"io"
	"net/http"
)

// OperationRequestMessage is one HTTP request decoded from a batch, with its
// URL already resolved against any $1-style Content-ID reference.
type OperationRequestMessage struct {
	reader    *BatchReader
	gen       int
	method    string
	uri       string
	headers   http.Header
	contentID string
	dependsOn []string
	bodyFn    func() io.Reader
}

func (m *OperationRequestMessage) Method() string       { return m.method }
func (m *OperationRequestMessage) URI() string          { return m.uri }
func (m *OperationRequestMessage) Headers() http.Header { return m.headers }

// ContentID is the request's own Content-ID (MIME) or id (JSON), empty if
// the part carries none (only possible outside a changeset/atomicityGroup).
func (m *OperationRequestMessage) ContentID() string { return m.contentID }

// DependsOn lists the leaf request ids this request must follow, with any
// atomicityGroup reference already flattened to its member request ids.
// Always empty for MIME batches, which order operations structurally.
func (m *OperationRequestMessage) DependsOn() []string { return m.dependsOn }

// OpenBody returns a single-use reader over the request body. It fails with
// ErrStreamAborted if the reader has already advanced past this operation,
// or with ErrInvalidReaderState if a body stream was already requested.
func (m *OperationRequestMessage) OpenBody() (io.Reader, error) {
	return m.reader.openBody(m.gen, m.bodyFn)
}

// OperationResponseMessage is one HTTP response decoded from a batch.
type OperationResponseMessage struct {
	reader    *BatchReader
	gen       int
	status    int
	headers   http.Header
	contentID string
	bodyFn    func() io.Reader
}

func (m *OperationResponseMessage) StatusCode() int      { return m.status }
func (m *OperationResponseMessage) Headers() http.Header { return m.headers }

// ContentID is read from the response but is never registered with the URL
// resolver: responses are not addressable by later requests.
func (m *OperationResponseMessage) ContentID() string { return m.contentID }

func (m *OperationResponseMessage) OpenBody() (io.Reader, error) {
	return m.reader.openBody(m.gen, m.bodyFn)
}

// disposingReader marks its owning operation's body sub-state as disposed
// once fully read, so the reader can enforce "no live stream" on Advance
// without requiring the caller to call a separate Close method.
type disposingReader struct {
	r     *BatchReader
	gen   int
	inner io.Reader
	done  bool
}

func (d *disposingReader) Read(p []byte) (int, error) {
	if d.r.streamAborted || d.gen != d.r.generation {
		return 0, newError(KindStreamAborted, "operation body stream is no longer valid")
	}
	n, err := d.inner.Read(p)
	if err == io.EOF && !d.done {
		d.done = true
		if d.r.opSubState == SubStateStreamRequested {
			d.r.opSubState = SubStateStreamDisposed
		}
	}
	return n, err
}
