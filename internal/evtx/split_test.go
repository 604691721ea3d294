package evtx

import (
	"bufio"
	"strings"
	"testing"
	"testing/iotest"
)

func scanAll(t *testing.T, input string, chunk bool) []string {
	t.Helper()
	var r = strings.NewReader(input)
	sc := bufio.NewScanner(r)
	if chunk {
		sc = bufio.NewScanner(iotest.OneByteReader(strings.NewReader(input)))
	}
	sc.Split(ScanEvents)
	var out []string
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func TestScanEvents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "empty",
			input: "",
			want:  nil,
		},
		{
			name:  "no events",
			input: "<?xml version=\"1.0\"?><Events></Events>",
			want:  nil,
		},
		{
			name: "export wrapper",
			input: `<?xml version="1.0" encoding="UTF-8"?>` + "\n<Events>" +
				`<Event xmlns="urn:x"><System><EventID>1</EventID></System></Event>` +
				"\r\n" +
				`<Event xmlns="urn:x"><System><EventID>2</EventID></System><EventData><Data>x</Data></EventData></Event>` +
				"</Events>",
			want: []string{
				`<Event xmlns="urn:x"><System><EventID>1</EventID></System></Event>`,
				`<Event xmlns="urn:x"><System><EventID>2</EventID></System><EventData><Data>x</Data></EventData></Event>`,
			},
		},
		{
			name:  "dump output with declarations",
			input: "<?xml version=\"1.0\"?>\n<Event>\n<System/>\n</Event>\n<?xml version=\"1.0\"?>\n<Event>\n</Event>\n",
			want:  []string{"<Event>\n<System/>\n</Event>", "<Event>\n</Event>"},
		},
		{
			name:  "EventData outside an event is not a start",
			input: "<EventData>junk</EventData><Event>ok</Event>",
			want:  []string{"<Event>ok</Event>"},
		},
		{
			name:  "truncated trailing event",
			input: "<Event>a</Event><Event><System>",
			want:  []string{"<Event>a</Event>", "<Event><System>"},
		},
		{
			name:  "bare open tag at EOF is dropped",
			input: "<Event>a</Event><Event",
			want:  []string{"<Event>a</Event>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			for _, chunk := range []bool{false, true} {
				got := scanAll(t, tt.input, chunk)
				if strings.Join(got, "\x00") != strings.Join(tt.want, "\x00") || len(got) != len(tt.want) {
					t.Fatalf("chunked=%v got %q, want %q", chunk, got, tt.want)
				}
			}
		})
	}
}

func TestIsComplete(t *testing.T) {
	t.Parallel()
	if !isComplete([]byte("<Event></Event>")) {
		t.Error("closed event reported incomplete")
	}
	if isComplete([]byte("<Event><System>")) {
		t.Error("open event reported complete")
	}
}
