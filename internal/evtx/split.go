package evtx

import "bytes"

var (
	eventOpen  = []byte("<Event")
	eventClose = []byte("</Event>")
)

// ScanEvents is a bufio.SplitFunc that yields each <Event ...>...</Event>
// element of a stream. Text between events is discarded. An event still
// open at EOF is returned as is and fails to parse downstream.
func ScanEvents(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start, decided := indexEventStart(data)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// Keep a tail long enough to hold a split "<Event".
		if keep := len(data) - len(eventOpen); keep > 0 {
			return keep, nil, nil
		}
		return 0, nil, nil
	}
	if !decided {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}

	end := bytes.Index(data[start:], eventClose)
	if end < 0 {
		if atEOF {
			return len(data), data[start:], nil
		}
		return start, nil, nil
	}
	stop := start + end + len(eventClose)
	return stop, data[start:stop], nil
}

// indexEventStart finds the first "<Event" that opens an Event element
// rather than EventData or EventID. decided is false when the match sits at
// the very end of data and the next byte is still unknown.
func indexEventStart(data []byte) (int, bool) {
	off := 0
	for {
		i := bytes.Index(data[off:], eventOpen)
		if i < 0 {
			return -1, false
		}
		at := off + i
		next := at + len(eventOpen)
		if next == len(data) {
			return at, false
		}
		switch data[next] {
		case ' ', '\t', '\r', '\n', '>', '/':
			return at, true
		}
		off = next
	}
}

func isComplete(tok []byte) bool {
	return bytes.HasSuffix(tok, eventClose)
}
