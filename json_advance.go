package odatabatch

import (
	"context"
	"io"
	"strings"
)

// advanceJSON drives the JSON batch state machine described for component
// D. Request payloads additionally carry atomicityGroup-based changesets;
// response payloads are a flat sequence of operations.
func (r *BatchReader) advanceJSON(ctx context.Context) (bool, error) {
	if r.mode == modeResponse {
		return r.advanceJSONResponse(ctx)
	}
	switch r.state {
	case StateInitial:
		return r.jsonInitial(ctx)
	case StateOperation:
		return r.jsonContinueOperation(ctx)
	case StateChangesetStart:
		return r.jsonEnterChangeset(ctx)
	case StateChangesetEnd:
		return r.jsonAfterChangesetEnd(ctx)
	}
	return false, newError(KindInvalidReaderState, "advance called in an unsupported state")
}

func (r *BatchReader) jsonInitial(ctx context.Context) (bool, error) {
	el, err := r.jsonDriver.peek()
	if err != nil {
		return false, err
	}
	if el == nil {
		r.state = StateCompleted
		return false, nil
	}
	if el.req.AtomicityGroup != "" {
		r.state = StateChangesetStart
		return true, nil
	}
	return r.jsonEmitOperation(ctx, el)
}

func (r *BatchReader) jsonEnterChangeset(ctx context.Context) (bool, error) {
	el, err := r.jsonDriver.peek()
	if err != nil {
		return false, err
	}
	if el == nil {
		r.state = StateCompleted
		return false, nil
	}

	r.inChangeset = true
	r.changesetSize = 0
	_, span := r.tracer.StartChangeset(ctx, el.req.AtomicityGroup)
	r.changesetSpan = span

	return r.jsonEmitOperation(ctx, el)
}

func (r *BatchReader) jsonContinueOperation(ctx context.Context) (bool, error) {
	nextEl, err := r.jsonDriver.peek()
	if err != nil {
		return false, err
	}
	var nextGroup string
	if nextEl != nil {
		nextGroup = nextEl.req.AtomicityGroup
	}

	if r.groupTracker.isEnd(nextGroup) {
		if r.tracer != nil && r.changesetSpan != nil {
			r.tracer.EndChangeset(r.changesetSpan, int(r.changesetSize), true)
			r.changesetSpan = nil
		}
		if r.metrics != nil {
			r.metrics.RecordChangesetSize(ctx, int(r.changesetSize))
		}
		r.groupTracker.closeActive()
		r.state = StateChangesetEnd
		return true, nil
	}

	if nextEl == nil {
		r.inChangeset = false
		r.state = StateCompleted
		return false, nil
	}

	if !r.inChangeset && nextGroup != "" {
		r.state = StateChangesetStart
		return true, nil
	}

	return r.jsonEmitOperation(ctx, nextEl)
}

func (r *BatchReader) jsonAfterChangesetEnd(ctx context.Context) (bool, error) {
	r.inChangeset = false
	r.changesetSize = 0

	el, err := r.jsonDriver.peek()
	if err != nil {
		return false, err
	}
	if el == nil {
		r.state = StateCompleted
		return false, nil
	}
	if el.req.AtomicityGroup != "" {
		r.state = StateChangesetStart
		return true, nil
	}
	return r.jsonEmitOperation(ctx, el)
}

// jsonEmitOperation consumes el, validates and flattens its dependsOn
// list, registers its id with the URL resolver, and populates the
// reader's current-operation fields.
func (r *BatchReader) jsonEmitOperation(ctx context.Context, el *jsonElement) (bool, error) {
	req := el.req
	r.jsonDriver.consume()

	if err := r.groupTracker.validateDependsOn(req.ID, req.AtomicityGroup, req.DependsOn); err != nil {
		return false, err
	}
	flattened, err := r.groupTracker.flatten(req.DependsOn, r.jsonKnownRequests)
	if err != nil {
		return false, err
	}
	r.groupTracker.add(req.ID, req.AtomicityGroup)
	r.jsonKnownRequests[req.ID] = true

	r.batchSize++
	if r.settings.MaxPartsPerBatch > 0 && r.batchSize > r.settings.MaxPartsPerBatch {
		if r.metrics != nil {
			r.metrics.RecordQuotaExceeded(ctx, string(KindQuotaExceeded))
		}
		return false, newError(KindQuotaExceeded, "batch exceeds MaxPartsPerBatch=%d", r.settings.MaxPartsPerBatch)
	}
	if r.inChangeset {
		r.changesetSize++
		if r.settings.MaxOperationsPerChangeset > 0 && r.changesetSize > r.settings.MaxOperationsPerChangeset {
			if r.metrics != nil {
				r.metrics.RecordQuotaExceeded(ctx, string(KindQuotaExceeded))
			}
			return false, newError(KindQuotaExceeded, "changeset exceeds MaxOperationsPerChangeset=%d", r.settings.MaxOperationsPerChangeset)
		}
	}

	method := strings.ToUpper(req.Method)
	if !validMethods[method] {
		return false, newError(KindInvalidHTTPMethod, "unsupported method %q", method)
	}
	if r.inChangeset && (method == "GET" || method == "HEAD") {
		return false, newError(KindQueryMethodInChangeset, "method %q is not allowed inside an atomicityGroup", method)
	}

	resolvedURI, rerr := r.resolver.resolve(req.URL, r.inChangeset)
	if rerr != nil {
		return false, rerr
	}
	resolvedURI = r.applyBaseURI(resolvedURI)
	r.resolver.register(req.ID, resolvedURI)

	headers := headersFromMap(req.Headers)
	body := req.Body

	r.currentMethod = method
	r.currentURI = resolvedURI
	r.currentHeaders = headers
	r.currentContentID = req.ID
	r.currentDependsOn = flattened
	r.currentBodyFn = func() io.Reader {
		return jsonBodyStream(body, headers)
	}

	r.state = StateOperation
	r.opSubState = SubStateNone
	return true, nil
}

func (r *BatchReader) advanceJSONResponse(ctx context.Context) (bool, error) {
	switch r.state {
	case StateInitial, StateOperation:
		el, err := r.jsonDriver.peek()
		if err != nil {
			return false, err
		}
		if el == nil {
			r.state = StateCompleted
			return false, nil
		}
		r.jsonDriver.consume()
		resp := el.resp

		r.batchSize++
		if r.settings.MaxPartsPerBatch > 0 && r.batchSize > r.settings.MaxPartsPerBatch {
			if r.metrics != nil {
				r.metrics.RecordQuotaExceeded(ctx, string(KindQuotaExceeded))
			}
			return false, newError(KindQuotaExceeded, "batch exceeds MaxPartsPerBatch=%d", r.settings.MaxPartsPerBatch)
		}

		headers := headersFromMap(resp.Headers)
		body := resp.Body

		r.currentStatus = resp.Status
		r.currentHeaders = headers
		r.currentContentID = resp.ID
		r.currentBodyFn = func() io.Reader {
			return jsonBodyStream(body, headers)
		}

		r.state = StateOperation
		r.opSubState = SubStateNone
		return true, nil
	}
	return false, newError(KindInvalidReaderState, "advance called in an unsupported state")
}
