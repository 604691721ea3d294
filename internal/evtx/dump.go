package evtx

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

const (
	// DefaultDumpBinary is looked up in PATH when no binary is configured.
	DefaultDumpBinary = "evtx_dump"
	dumpExt           = ".evtx"
	stderrLimit       = 4 << 10
)

// DumpSource reads binary .evtx files through the evtx_dump command line
// tool (github.com/omerbenamram/evtx), which prints every record as XML.
type DumpSource struct {
	binary string
}

// NewDumpSource resolves binary in PATH. A missing tool yields
// ErrReaderUnavailable with install guidance.
func NewDumpSource(binary string) (*DumpSource, error) {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultDumpBinary
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found in PATH; install evtx_dump from "+
			"https://github.com/omerbenamram/evtx/releases, set --evtx-dump, "+
			"or convert XML exports with --reader xml", ErrReaderUnavailable, binary)
	}
	return &DumpSource{binary: path}, nil
}

func (*DumpSource) Name() string { return KindDump }

func (*DumpSource) Ext() string { return dumpExt }

// Binary returns the resolved tool path.
func (s *DumpSource) Binary() string { return s.binary }

// Open starts the tool for path. Its stdout is split into records as it
// arrives; a non-zero exit surfaces as a fatal stream error at the end.
func (s *DumpSource) Open(ctx context.Context, path string) (Stream, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("evtx: open %s: %w", path, err)
	}

	cmd := exec.CommandContext(ctx, s.binary, "-o", "xml", "--dont-show-record-number", path)
	stderr := &limitedBuffer{limit: stderrLimit}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("evtx: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("evtx: start %s: %w", s.binary, err)
	}

	var (
		once    sync.Once
		waitErr error
	)
	wait := func() error {
		once.Do(func() {
			if err := cmd.Wait(); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					waitErr = ctxErr
					return
				}
				waitErr = fmt.Errorf("evtx: %s failed on %s: %w: %s",
					DefaultDumpBinary, path, err, strings.TrimSpace(stderr.String()))
			}
		})
		return waitErr
	}
	closeFn := func() error {
		// Stop a tool that is still printing; its exit error is expected then.
		if cmd.ProcessState == nil && cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		_ = wait()
		return nil
	}
	return newScanStream(stdout, MaxRecordSize, wait, closeFn), nil
}

// limitedBuffer keeps the first limit bytes written to it.
type limitedBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
