// Package odatabatch implements a pull-driven reader for OData v4 batch
// messages: multipart/mixed MIME batches and the JSON batch format. A
// BatchReader decomposes a single composite payload into the individual
// HTTP request or response operations it carries, in protocol order,
// enforcing changeset/atomicityGroup atomicity and dependsOn ordering as it
// goes. It never buffers a MIME operation's body; callers pull bytes from
// OpenBody() themselves. A JSON element, body included, is decoded whole
// before its operation is yielded.
package odatabatch

import (
	"context"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/nlstn/odata-batch/internal/observability"
)

// ReaderState is the façade's externally observable position in the batch.
type ReaderState int

const (
	StateInitial ReaderState = iota
	StateOperation
	StateChangesetStart
	StateChangesetEnd
	StateCompleted
	StateException
)

func (s ReaderState) String() string {
	switch s {
	case StateInitial:
		return "Initial"
	case StateOperation:
		return "Operation"
	case StateChangesetStart:
		return "ChangesetStart"
	case StateChangesetEnd:
		return "ChangesetEnd"
	case StateCompleted:
		return "Completed"
	case StateException:
		return "Exception"
	default:
		return "Unknown"
	}
}

// OperationSubState tracks how far the caller has gotten with the current
// Operation before another Advance/AdvanceContext call is permitted.
type OperationSubState int

const (
	SubStateNone OperationSubState = iota
	SubStateMessageCreated
	SubStateStreamRequested
	SubStateStreamDisposed
)

type readerMode int

const (
	modeRequest readerMode = iota
	modeResponse
)

type batchFormat int

const (
	formatMIME batchFormat = iota
	formatJSON
)

func (f batchFormat) String() string {
	if f == formatJSON {
		return "json"
	}
	return "mime"
}

var validMethods = map[string]bool{
	http.MethodGet: true, http.MethodPost: true, http.MethodPut: true,
	http.MethodPatch: true, http.MethodDelete: true, "MERGE": true,
}

// BatchReader is the caller-driven state machine described in the package
// doc: construct it with OpenRequest or OpenResponse, then repeatedly call
// Advance (or AdvanceContext) and inspect State between calls.
type BatchReader struct {
	format     batchFormat
	mode       readerMode
	settings   *Settings
	state      ReaderState
	opSubState OperationSubState
	generation int

	batchSize     uint32
	changesetSize uint32
	inChangeset   bool

	resolver *urlResolver

	// MIME-specific.
	lr            *lineReader
	outerBoundary string
	innerBoundary string
	seenInChangeset map[string]bool

	// JSON-specific.
	jsonDriver        *jsonReader
	groupTracker      *groupTracker
	jsonKnownRequests map[string]bool

	// Publication of the just-completed request's Content-ID is deferred
	// to the next Advance call, per the MIME changeset ordering rule.
	pendingContentID   string
	pendingResolvedURI string

	currentMethod    string
	currentStatus    int
	currentURI       string
	currentHeaders   http.Header
	currentContentID string
	currentDependsOn []string
	currentBodyFn    func() io.Reader

	streamAborted bool

	ctx           context.Context
	tracer        *observability.Tracer
	metrics       *observability.Metrics
	batchSpan     trace.Span
	changesetSpan trace.Span
	logger        *slog.Logger
}

// OpenRequest creates a BatchReader over a batch request payload (one
// containing HTTP requests). contentType is the outer Content-Type header,
// used to select the MIME or JSON driver.
func OpenRequest(r io.Reader, contentType string, settings *Settings) (*BatchReader, error) {
	return newReader(r, contentType, modeRequest, settings)
}

// OpenResponse creates a BatchReader over a batch response payload (one
// containing HTTP responses).
func OpenResponse(r io.Reader, contentType string, settings *Settings) (*BatchReader, error) {
	return newReader(r, contentType, modeResponse, settings)
}

func newReader(r io.Reader, contentType string, mode readerMode, settings *Settings) (*BatchReader, error) {
	if settings == nil {
		settings = NewSettings()
	}
	br := &BatchReader{
		mode:     mode,
		settings: settings,
		resolver: newURLResolver(),
		logger:   settings.logger,
		tracer:   settings.observability.Tracer(),
		metrics:  settings.observability.Metrics(),
		ctx:      context.Background(),
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, newError(KindMalformedFraming, "invalid Content-Type %q", contentType)
	}

	switch {
	case mediaType == "multipart/mixed":
		boundary := params["boundary"]
		if boundary == "" {
			return nil, newError(KindMalformedFraming, "multipart/mixed batch is missing a boundary parameter")
		}
		br.format = formatMIME
		br.lr = newLineReader(r)
		br.outerBoundary = boundary
		br.seenInChangeset = make(map[string]bool)
	case mediaType == "application/json":
		jr, err := newJSONReader(r)
		if err != nil {
			return nil, err
		}
		br.format = formatJSON
		br.jsonDriver = jr
		br.groupTracker = newGroupTracker()
		br.jsonKnownRequests = make(map[string]bool)
	default:
		return nil, newError(KindMalformedFraming, "unsupported batch Content-Type %q", mediaType)
	}

	ctx, span := br.tracer.StartBatch(br.ctx, br.format.String())
	br.ctx = ctx
	br.batchSpan = span
	return br, nil
}

// State returns the reader's current position in the batch.
func (r *BatchReader) State() ReaderState { return r.state }

// OperationSubState returns how far the caller has progressed through the
// current Operation.
func (r *BatchReader) OperationSubState() OperationSubState { return r.opSubState }

// Close aborts any in-flight operation body stream. It is safe to call at
// any time, including after Completed or Exception, and is idempotent.
func (r *BatchReader) Close() error {
	r.streamAborted = true
	return nil
}

// Advance moves the reader to its next state, returning false once
// Completed is reached (or if it was already reached) and an error if the
// batch is malformed. After an error the reader is in the Exception state
// and every further call fails with an InvalidReaderState error.
func (r *BatchReader) Advance() (bool, error) {
	return r.AdvanceContext(context.Background())
}

// AdvanceContext is Advance with a caller-supplied context, passed to the
// changeset spans and metrics recorded during the advance call. The context
// is not checked for cancellation.
func (r *BatchReader) AdvanceContext(ctx context.Context) (bool, error) {
	if r.state == StateException {
		return false, newError(KindInvalidReaderState, "reader already failed")
	}
	if r.state == StateCompleted {
		return false, nil
	}
	if r.opSubState == SubStateStreamRequested {
		return r.fail(newError(KindInvalidReaderState, "an operation body stream is still open"))
	}
	if r.state == StateOperation && r.opSubState == SubStateNone {
		return r.fail(newError(KindInvalidReaderState, "CreateOperationRequest/CreateOperationResponse must be called before advancing past Operation"))
	}

	r.generation++

	var cont bool
	var err error
	switch r.format {
	case formatMIME:
		cont, err = r.advanceMIME(ctx)
	case formatJSON:
		cont, err = r.advanceJSON(ctx)
	}
	if err != nil {
		return r.fail(err)
	}
	if r.state == StateCompleted {
		if r.metrics != nil {
			r.metrics.RecordBatchSize(ctx, int(r.batchSize))
		}
		if r.tracer != nil && r.batchSpan != nil {
			r.batchSpan.End()
		}
		if r.logger != nil {
			r.logger.Debug("odatabatch: batch completed", "parts", r.batchSize)
		}
	}
	return cont, nil
}

func (r *BatchReader) fail(err error) (bool, error) {
	r.state = StateException
	if be, ok := err.(*ODataBatchError); ok {
		if r.logger != nil {
			r.logger.Warn("odatabatch: reader entering Exception state", "kind", string(be.Kind), "error", err)
		}
		if r.metrics != nil {
			r.metrics.RecordParseError(context.Background(), string(be.Kind))
		}
	}
	if r.tracer != nil {
		if r.changesetSpan != nil {
			r.tracer.RecordError(r.changesetSpan, err)
			r.changesetSpan.End()
			r.changesetSpan = nil
		}
		if r.batchSpan != nil {
			r.tracer.RecordError(r.batchSpan, err)
			r.batchSpan.End()
		}
	}
	return false, err
}

func (r *BatchReader) applyBaseURI(raw string) string {
	if r.settings.BaseURI == nil {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() {
		return raw
	}
	return r.settings.BaseURI.ResolveReference(u).String()
}

func (r *BatchReader) openBody(gen int, factory func() io.Reader) (io.Reader, error) {
	if r.streamAborted || gen != r.generation {
		return nil, newError(KindStreamAborted, "operation body stream is no longer valid; the reader has advanced")
	}
	if r.opSubState == SubStateStreamRequested || r.opSubState == SubStateStreamDisposed {
		return nil, newError(KindInvalidReaderState, "a body stream was already requested for this operation")
	}
	r.opSubState = SubStateStreamRequested
	return &disposingReader{r: r, gen: gen, inner: factory()}, nil
}

// CreateOperationRequest materializes the message for the current
// Operation state. It may be called exactly once per Operation, and only
// when the reader was opened with OpenRequest.
func (r *BatchReader) CreateOperationRequest() (*OperationRequestMessage, error) {
	if r.mode != modeRequest {
		return nil, newError(KindInvalidReaderState, "reader was opened with OpenResponse")
	}
	if r.state != StateOperation {
		return nil, newError(KindInvalidReaderState, "CreateOperationRequest called outside the Operation state")
	}
	if r.opSubState != SubStateNone {
		return nil, newError(KindInvalidReaderState, "an operation message was already created")
	}

	r.opSubState = SubStateMessageCreated
	r.pendingContentID = r.currentContentID
	r.pendingResolvedURI = r.currentURI

	if r.metrics != nil {
		r.metrics.RecordOperation(context.Background(), r.format.String())
	}

	return &OperationRequestMessage{
		reader:    r,
		gen:       r.generation,
		method:    r.currentMethod,
		uri:       r.currentURI,
		headers:   r.currentHeaders,
		contentID: r.currentContentID,
		dependsOn: r.currentDependsOn,
		bodyFn:    r.currentBodyFn,
	}, nil
}

// CreateOperationResponse is CreateOperationRequest's counterpart for
// readers opened with OpenResponse.
func (r *BatchReader) CreateOperationResponse() (*OperationResponseMessage, error) {
	if r.mode != modeResponse {
		return nil, newError(KindInvalidReaderState, "reader was opened with OpenRequest")
	}
	if r.state != StateOperation {
		return nil, newError(KindInvalidReaderState, "CreateOperationResponse called outside the Operation state")
	}
	if r.opSubState != SubStateNone {
		return nil, newError(KindInvalidReaderState, "an operation message was already created")
	}

	r.opSubState = SubStateMessageCreated

	if r.metrics != nil {
		r.metrics.RecordOperation(context.Background(), r.format.String())
	}

	return &OperationResponseMessage{
		reader:    r,
		gen:       r.generation,
		status:    r.currentStatus,
		headers:   r.currentHeaders,
		contentID: r.currentContentID,
		bodyFn:    r.currentBodyFn,
	}, nil
}

func syntheticResponseID() string {
	return uuid.NewString()
}

// parseRequestLine splits on the first space (method) and last space
// (HTTP version), treating everything in between as the request URI —
// URIs may themselves contain spaces (e.g. a $filter literal).
func parseRequestLine(line string) (method, requestURI string, err error) {
	first := strings.IndexByte(line, ' ')
	last := strings.LastIndexByte(line, ' ')
	if first < 0 || last <= first {
		return "", "", newError(KindInvalidRequestLine, "malformed request line %q", line)
	}
	version := line[last+1:]
	if version != "HTTP/1.1" {
		return "", "", newError(KindInvalidHTTPVersion, "unsupported HTTP version %q", version)
	}
	requestURI = line[first+1 : last]
	if requestURI == "" {
		return "", "", newError(KindInvalidRequestLine, "malformed request line %q", line)
	}
	return strings.ToUpper(line[:first]), requestURI, nil
}

func parseStatusLine(line string) (status int, err error) {
	fields := strings.SplitN(line, " ", 3)
	if len(fields) < 2 {
		return 0, newError(KindInvalidResponseLine, "malformed status line %q", line)
	}
	if fields[0] != "HTTP/1.1" {
		return 0, newError(KindInvalidHTTPVersion, "unsupported HTTP version %q", fields[0])
	}
	status, convErr := strconv.Atoi(fields[1])
	if convErr != nil {
		return 0, newError(KindInvalidResponseLine, "malformed status code %q", fields[1])
	}
	return status, nil
}

func contentIDFromHeaders(h http.Header) string {
	return h.Get("Content-Id")
}
