package odatabatch

import (
	"bufio"
	"bytes"
	"io"
)

// lineReader is a rewindable, line-oriented cursor over a byte stream. It
// underlies both the MIME boundary scanner and the per-part HTTP header
// parser. It reads through a 64 KiB bufio.Reader and holds at most one
// pushed-back line.
type lineReader struct {
	br          *bufio.Reader
	pending     []byte
	havePending bool
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{br: bufio.NewReaderSize(r, 64*1024)}
}

func (l *lineReader) readRawLine() ([]byte, error) {
	if l.havePending {
		l.havePending = false
		return l.pending, nil
	}
	line, err := l.br.ReadBytes('\n')
	if len(line) == 0 && err != nil {
		return nil, err
	}
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return line, nil
}

// peekLine returns the next line without consuming it. A second call to
// peekLine (with no intervening readLine) returns the same line.
func (l *lineReader) peekLine() ([]byte, error) {
	if l.havePending {
		return l.pending, nil
	}
	line, err := l.readRawLine()
	if err != nil {
		return nil, err
	}
	l.pending = line
	l.havePending = true
	return line, nil
}

// readLine consumes and returns the next line.
func (l *lineReader) readLine() ([]byte, error) {
	return l.readRawLine()
}

func isBoundaryLine(line, boundary string) (match bool, isEnd bool) {
	delim := "--" + boundary
	if line == delim {
		return true, false
	}
	if line == delim+"--" {
		return true, true
	}
	return false, false
}

// skipToBoundary discards lines (preamble, trailing body remnants) until it
// finds a delimiter line for boundary, or for one of the enclosing
// boundaries (signalling the current part list was implicitly closed by its
// parent, without its own closing delimiter). In the latter case the
// matched line is pushed back so the caller processes it at the outer
// scope.
func (l *lineReader) skipToBoundary(boundary string, enclosing []string) (found, isEnd, isParent bool, err error) {
	for {
		line, lerr := l.readLine()
		if lerr != nil {
			if lerr == io.EOF {
				return false, false, false, nil
			}
			return false, false, false, lerr
		}
		s := string(line)
		if match, end := isBoundaryLine(s, boundary); match {
			return true, end, false, nil
		}
		for _, enc := range enclosing {
			if match, _ := isBoundaryLine(s, enc); match {
				l.pending = line
				l.havePending = true
				return false, false, true, nil
			}
		}
	}
}

// partBodyReader streams a MIME part body, stopping exactly at the line
// preceding the next boundary delimiter (its own or any enclosing one)
// without consuming that delimiter line, so the framing layer can process
// it afterward. The CRLF immediately before a boundary is delimiter syntax,
// not body content, and is never included in the returned bytes.
type partBodyReader struct {
	lr       *lineReader
	boundary string
	parents  []string
	buf      bytes.Buffer
	started  bool
	done     bool
}

func newPartBodyReader(lr *lineReader, boundary string, parents []string) *partBodyReader {
	return &partBodyReader{lr: lr, boundary: boundary, parents: parents}
}

func (p *partBodyReader) atBoundary(line string) bool {
	if match, _ := isBoundaryLine(line, p.boundary); match {
		return true
	}
	for _, enc := range p.parents {
		if match, _ := isBoundaryLine(line, enc); match {
			return true
		}
	}
	return false
}

func (p *partBodyReader) Read(out []byte) (int, error) {
	for p.buf.Len() == 0 && !p.done {
		line, err := p.lr.peekLine()
		if err != nil {
			if err == io.EOF {
				p.done = true
				break
			}
			return 0, err
		}
		if p.atBoundary(string(line)) {
			p.done = true
			break
		}
		_, _ = p.lr.readLine()
		if p.started {
			p.buf.WriteString("\r\n")
		}
		p.started = true
		p.buf.Write(line)
	}
	if p.buf.Len() == 0 && p.done {
		return 0, io.EOF
	}
	n := copy(out, p.buf.Bytes())
	p.buf.Next(n)
	return n, nil
}
