package evtx

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

const (
	initialRecordBuffer = 64 << 10
	// MaxRecordSize bounds one serialized event.
	MaxRecordSize = 16 << 20
)

// scanStream splits an XML byte stream into records.
type scanStream struct {
	scanner *bufio.Scanner
	limit   int
	index   int
	done    bool
	// oversized marks the current token as the head of a record over limit;
	// skipping drops input until that record closes.
	oversized bool
	skipping  bool
	// finish runs once when the scanner is exhausted; its error is fatal.
	finish func() error
	close  func() error
}

func newScanStream(r io.Reader, limit int, finish, close func() error) *scanStream {
	s := &scanStream{limit: limit, finish: finish, close: close}
	s.scanner = bufio.NewScanner(r)
	s.scanner.Buffer(make([]byte, min(initialRecordBuffer, limit)), limit)
	s.scanner.Split(s.split)
	return s
}

// split is ScanEvents plus recovery from records that fill the whole buffer.
func (s *scanStream) split(data []byte, atEOF bool) (int, []byte, error) {
	if s.skipping {
		if i := bytes.Index(data, eventClose); i >= 0 {
			s.skipping = false
			return i + len(eventClose), nil, nil
		}
		if atEOF {
			return len(data), nil, nil
		}
		// Keep a tail long enough to hold a split "</Event>".
		return max(len(data)-len(eventClose)+1, 0), nil, nil
	}
	start, decided := indexEventStart(data)
	if start >= 0 && decided && len(data)-start >= s.limit && !bytes.Contains(data[start:], eventClose) {
		s.oversized, s.skipping = true, true
		return len(data), data[start : start+len(eventOpen)], nil
	}
	return ScanEvents(data, atEOF)
}

func (s *scanStream) Next() (Record, error) {
	if s.done {
		return Record{}, io.EOF
	}
	if s.scanner.Scan() {
		rec := Record{Index: s.index}
		if s.oversized {
			s.oversized = false
			rec.Err = fmt.Errorf("%w: record %d exceeds %d bytes", ErrRecordTooLarge, s.index, s.limit)
		} else {
			tok := s.scanner.Bytes()
			rec.XML = append([]byte(nil), tok...)
			if !isComplete(tok) {
				rec.Err = fmt.Errorf("%w at record %d", ErrTruncated, s.index)
			}
		}
		s.index++
		return rec, nil
	}
	s.done = true
	if err := s.scanner.Err(); err != nil {
		return Record{}, fmt.Errorf("evtx: scan: %w", err)
	}
	if s.finish != nil {
		if err := s.finish(); err != nil {
			return Record{}, err
		}
	}
	return Record{}, io.EOF
}

func (s *scanStream) Close() error {
	if s.close == nil {
		return nil
	}
	c := s.close
	s.close = nil
	return c()
}
