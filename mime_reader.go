package odatabatch

import (
	"context"
	"io"
	"mime"
)

// advanceMIME drives the multipart/mixed state machine described for
// component C: Initial reads the first outer part; each Operation
// continuation skips to the next boundary and decides whether it opens a
// changeset, closes one, or is itself the next operation.
func (r *BatchReader) advanceMIME(ctx context.Context) (bool, error) {
	switch r.state {
	case StateInitial:
		return r.mimeInitial(ctx)
	case StateOperation:
		return r.mimeContinueOperation(ctx)
	case StateChangesetStart:
		return r.mimeEnterChangeset(ctx)
	case StateChangesetEnd:
		return r.mimeAfterChangesetEnd(ctx)
	}
	return false, newError(KindInvalidReaderState, "advance called in an unsupported state")
}

func (r *BatchReader) mimeInitial(ctx context.Context) (bool, error) {
	found, isEnd, _, err := r.lr.skipToBoundary(r.outerBoundary, nil)
	if err != nil {
		return false, wrapError(KindMalformedFraming, err, "failed scanning for the batch boundary")
	}
	if !found || isEnd {
		r.state = StateCompleted
		return false, nil
	}
	return r.mimeOpenOuterPart(ctx)
}

// mimeOpenOuterPart parses the envelope (and, for a plain operation, the
// inner HTTP framing) of the part that was just found at the outer scope,
// deciding between ChangesetStart and Operation.
func (r *BatchReader) mimeOpenOuterPart(ctx context.Context) (bool, error) {
	envelope, err := parseHeaderBlock(r.lr)
	if err != nil {
		return false, err
	}

	r.batchSize++
	if r.settings.MaxPartsPerBatch > 0 && r.batchSize > r.settings.MaxPartsPerBatch {
		if r.metrics != nil {
			r.metrics.RecordQuotaExceeded(ctx, string(KindQuotaExceeded))
		}
		return false, newError(KindQuotaExceeded, "batch exceeds MaxPartsPerBatch=%d", r.settings.MaxPartsPerBatch)
	}

	boundary, isChangeset, err := detectChangesetBoundary(envelope)
	if err != nil {
		return false, err
	}
	if isChangeset {
		r.innerBoundary = boundary
		r.state = StateChangesetStart
		return true, nil
	}

	return r.mimeParseOperation(envelope, false)
}

func detectChangesetBoundary(envelope map[string][]string) (boundary string, isChangeset bool, err error) {
	ct := envelope["Content-Type"]
	if len(ct) == 0 {
		return "", false, nil
	}
	mediaType, params, perr := mime.ParseMediaType(ct[0])
	if perr != nil {
		return "", false, newError(KindMalformedFraming, "invalid part Content-Type %q", ct[0])
	}
	if mediaType != "multipart/mixed" {
		return "", false, nil
	}
	b := params["boundary"]
	if b == "" {
		return "", false, newError(KindMalformedFraming, "nested multipart/mixed part is missing a boundary parameter")
	}
	return b, true, nil
}

// mimeParseOperation reads the inner HTTP request-line/status-line and
// header block that follows a part's MIME envelope, and populates the
// reader's current-operation fields.
func (r *BatchReader) mimeParseOperation(envelope map[string][]string, insideChangeset bool) (bool, error) {
	line, err := r.lr.readLine()
	if err != nil {
		return false, wrapError(KindMalformedFraming, err, "failed reading the HTTP start line")
	}
	innerHeaders, err := parseHeaderBlock(r.lr)
	if err != nil {
		return false, err
	}

	contentID := contentIDFromHeaders(envelope)
	if contentID == "" && r.settings.AllowLegacyContentIDInHTTPHeaders {
		contentID = contentIDFromHeaders(innerHeaders)
	}

	scope := []string{r.outerBoundary}
	boundary := r.innerBoundary
	if !insideChangeset {
		boundary = r.outerBoundary
		scope = nil
	}

	if r.mode == modeRequest {
		method, requestURI, perr := parseRequestLine(string(line))
		if perr != nil {
			return false, perr
		}
		if !validMethods[method] {
			return false, newError(KindInvalidHTTPMethod, "unsupported HTTP method %q", method)
		}
		if insideChangeset && (method == "GET" || method == "HEAD") {
			return false, newError(KindQueryMethodInChangeset, "method %q is not allowed inside a changeset", method)
		}
		if insideChangeset {
			if contentID == "" {
				return false, newError(KindMissingContentID, "request inside a changeset is missing a Content-ID")
			}
			if r.seenInChangeset[contentID] {
				return false, newError(KindDuplicateContentID, "duplicate Content-ID %q within the changeset", contentID)
			}
			r.seenInChangeset[contentID] = true
		}

		resolvedURI, rerr := r.resolver.resolve(requestURI, insideChangeset)
		if rerr != nil {
			return false, rerr
		}
		resolvedURI = r.applyBaseURI(resolvedURI)

		r.currentMethod = method
		r.currentURI = resolvedURI
		r.currentHeaders = innerHeaders
		r.currentContentID = contentID
		r.currentDependsOn = nil
		r.currentBodyFn = mimeBodyFactory(r.lr, boundary, scope)
	} else {
		status, perr := parseStatusLine(string(line))
		if perr != nil {
			return false, perr
		}
		r.currentStatus = status
		r.currentHeaders = innerHeaders
		r.currentContentID = contentID
		r.currentBodyFn = mimeBodyFactory(r.lr, boundary, scope)
	}

	if insideChangeset {
		r.changesetSize++
		if r.settings.MaxOperationsPerChangeset > 0 && r.changesetSize > r.settings.MaxOperationsPerChangeset {
			if r.metrics != nil {
				r.metrics.RecordQuotaExceeded(context.Background(), string(KindQuotaExceeded))
			}
			return false, newError(KindQuotaExceeded, "changeset exceeds MaxOperationsPerChangeset=%d", r.settings.MaxOperationsPerChangeset)
		}
	}

	r.state = StateOperation
	r.opSubState = SubStateNone
	return true, nil
}

func mimeBodyFactory(lr *lineReader, boundary string, parents []string) func() io.Reader {
	return func() io.Reader {
		return newPartBodyReader(lr, boundary, parents)
	}
}

func (r *BatchReader) mimeEnterChangeset(ctx context.Context) (bool, error) {
	r.inChangeset = true
	r.changesetSize = 0
	_, span := r.tracer.StartChangeset(ctx, "")
	r.changesetSpan = span

	found, isEnd, _, err := r.lr.skipToBoundary(r.innerBoundary, []string{r.outerBoundary})
	if err != nil {
		return false, wrapError(KindMalformedFraming, err, "failed scanning for the changeset boundary")
	}
	if !found {
		return false, newError(KindMalformedFraming, "changeset is missing its closing boundary")
	}
	if isEnd {
		r.state = StateChangesetEnd
		return true, nil
	}

	envelope, err := parseHeaderBlock(r.lr)
	if err != nil {
		return false, err
	}
	if _, nested, nerr := detectChangesetBoundary(envelope); nerr != nil {
		return false, nerr
	} else if nested {
		return false, newError(KindNestedChangesetNotAllowed, "a changeset may not itself contain a nested changeset")
	}
	return r.mimeParseOperation(envelope, true)
}

func (r *BatchReader) mimeContinueOperation(ctx context.Context) (bool, error) {
	if r.pendingContentID != "" {
		r.resolver.register(r.pendingContentID, r.pendingResolvedURI)
		r.pendingContentID = ""
	}

	if r.inChangeset {
		found, isEnd, isParent, err := r.lr.skipToBoundary(r.innerBoundary, []string{r.outerBoundary})
		if err != nil {
			return false, wrapError(KindMalformedFraming, err, "failed scanning for the next changeset part")
		}
		if !found && !isParent {
			return false, newError(KindMalformedFraming, "changeset is missing its closing boundary")
		}
		if isParent || isEnd {
			if r.tracer != nil && r.changesetSpan != nil {
				r.tracer.EndChangeset(r.changesetSpan, int(r.changesetSize), true)
				r.changesetSpan = nil
			}
			if r.metrics != nil {
				r.metrics.RecordChangesetSize(ctx, int(r.changesetSize))
			}
			r.state = StateChangesetEnd
			return true, nil
		}

		envelope, err := parseHeaderBlock(r.lr)
		if err != nil {
			return false, err
		}
		if _, nested, nerr := detectChangesetBoundary(envelope); nerr != nil {
			return false, nerr
		} else if nested {
			return false, newError(KindNestedChangesetNotAllowed, "a changeset may not itself contain a nested changeset")
		}
		return r.mimeParseOperation(envelope, true)
	}

	found, isEnd, _, err := r.lr.skipToBoundary(r.outerBoundary, nil)
	if err != nil {
		return false, wrapError(KindMalformedFraming, err, "failed scanning for the next batch part")
	}
	if !found || isEnd {
		r.state = StateCompleted
		return false, nil
	}
	return r.mimeOpenOuterPart(ctx)
}

func (r *BatchReader) mimeAfterChangesetEnd(ctx context.Context) (bool, error) {
	r.resolver.reset()
	r.seenInChangeset = make(map[string]bool)
	r.changesetSize = 0
	r.inChangeset = false

	found, isEnd, _, err := r.lr.skipToBoundary(r.outerBoundary, nil)
	if err != nil {
		return false, wrapError(KindMalformedFraming, err, "failed scanning for the next batch part")
	}
	if !found || isEnd {
		r.state = StateCompleted
		return false, nil
	}
	return r.mimeOpenOuterPart(ctx)
}
