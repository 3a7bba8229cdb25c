// Package threadfile provides a byte source that lets multiple
// concurrent readers keep independent seek positions over the same
// underlying file, without lock contention on ordinary reads.
//
// It is grounded on the original consumer library's ThreadAwareFile
// (amazon_kinesis_video_consumer_library/ebmlite/threaded_file.py),
// which keys a private *os.File-equivalent per calling thread's
// identity. Go has no public, stable goroutine-identity API, so callers
// here carry an explicit CursorContext token — obtained once from
// NewCursor — through every call, standing in for "whichever thread is
// calling".
package threadfile

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// CursorContext identifies one independent reader over a ThreadAwareFile.
// Obtain one from NewCursor per concurrent reader; do not share a
// CursorContext across goroutines that should not interleave seeks.
type CursorContext struct {
	id uint64
}

var cursorSeq uint64
var cursorSeqMu sync.Mutex

// NewCursor mints a fresh CursorContext.
func NewCursor() CursorContext {
	cursorSeqMu.Lock()
	defer cursorSeqMu.Unlock()
	cursorSeq++
	return CursorContext{id: cursorSeq}
}

// ThreadAwareFile wraps a read-only file, handing each CursorContext its
// own *os.File handle opened on first use. Normal Read/Seek/Tell never
// block against each other; only CloseAll and Cleanup coordinate through
// a timeout-bounded lock, matching the "event only guards the two
// housekeeping operations" contract of the original implementation.
type ThreadAwareFile struct {
	path string

	// Timeout bounds how long CloseAll/Cleanup wait to acquire the
	// housekeeping lock before degrading to a logged warning. Default 60s.
	Timeout time.Duration

	handles   sync.Map // CursorContext -> *os.File
	closedSet sync.Map // CursorContext -> struct{} (closed handles pending cleanup)

	// housekeeping is a 1-buffered channel used as a cancelable mutex:
	// holding the token means holding the lock. A plain sync.Mutex can't
	// be acquired with a timeout without leaking a goroutine that later
	// locks it out from under a caller who already gave up.
	housekeeping chan struct{}
	logger       zerolog.Logger
}

// Open opens path read-only. Write modes are never supported.
func Open(path string) (*ThreadAwareFile, error) {
	// Verify the file is readable up front so callers see a failure
	// immediately rather than on first per-cursor access.
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	_ = f.Close()

	housekeeping := make(chan struct{}, 1)
	housekeeping <- struct{}{}

	return &ThreadAwareFile{
		path:         path,
		Timeout:      60 * time.Second,
		housekeeping: housekeeping,
		logger:       log.With().Str("component", "threadfile").Str("path", path).Logger(),
	}, nil
}

// handleFor returns ctx's private *os.File, opening it on first use.
func (t *ThreadAwareFile) handleFor(ctx CursorContext) (*os.File, error) {
	if v, ok := t.handles.Load(ctx); ok {
		return v.(*os.File), nil
	}
	f, err := os.Open(t.path)
	if err != nil {
		return nil, err
	}
	actual, loaded := t.handles.LoadOrStore(ctx, f)
	if loaded {
		_ = f.Close()
		return actual.(*os.File), nil
	}
	return f, nil
}

// ReadAt reads len(p) bytes starting at off using ctx's own cursor,
// without disturbing any other context's position.
func (t *ThreadAwareFile) ReadAt(ctx CursorContext, p []byte, off int64) (int, error) {
	f, err := t.handleFor(ctx)
	if err != nil {
		return 0, err
	}
	return f.ReadAt(p, off)
}

// Read reads from ctx's current position, advancing it.
func (t *ThreadAwareFile) Read(ctx CursorContext, p []byte) (int, error) {
	f, err := t.handleFor(ctx)
	if err != nil {
		return 0, err
	}
	return f.Read(p)
}

// Seek repositions ctx's cursor.
func (t *ThreadAwareFile) Seek(ctx CursorContext, offset int64, whence int) (int64, error) {
	f, err := t.handleFor(ctx)
	if err != nil {
		return 0, err
	}
	return f.Seek(offset, whence)
}

// Tell reports ctx's current position.
func (t *ThreadAwareFile) Tell(ctx CursorContext) (int64, error) {
	return t.Seek(ctx, 0, io.SeekCurrent)
}

// Reader returns an io.ReadSeeker bound to ctx's own cursor. Separate
// CursorContexts over the same ThreadAwareFile each get an independent
// view suitable as the Source for an ebml.Document, so two callers can
// drive their own Document over the same underlying file without either
// disturbing the other's seek position.
func (t *ThreadAwareFile) Reader(ctx CursorContext) io.ReadSeeker {
	return &cursorReader{file: t, ctx: ctx}
}

// cursorReader adapts one CursorContext's view of a ThreadAwareFile to
// io.ReadSeeker.
type cursorReader struct {
	file *ThreadAwareFile
	ctx  CursorContext
}

func (r *cursorReader) Read(p []byte) (int, error) {
	return r.file.Read(r.ctx, p)
}

func (r *cursorReader) Seek(offset int64, whence int) (int64, error) {
	return r.file.Seek(r.ctx, offset, whence)
}

// Closed reports whether ctx's handle is closed. A context that never
// touched the file reports true, matching the original's per-thread
// semantics.
func (t *ThreadAwareFile) Closed(ctx CursorContext) bool {
	if _, ok := t.handles.Load(ctx); !ok {
		return true
	}
	_, closed := t.closedSet.Load(ctx)
	return closed
}

// Close closes ctx's handle and triggers cleanup of already-closed
// handles.
func (t *ThreadAwareFile) Close(ctx CursorContext) error {
	v, ok := t.handles.LoadAndDelete(ctx)
	if !ok {
		return nil
	}
	f := v.(*os.File)
	err := f.Close()
	t.closedSet.Store(ctx, struct{}{})
	t.Cleanup(context.Background())
	return err
}

// CloseAll closes every context's handle. It waits up to Timeout for the
// housekeeping lock; on timeout it logs a warning and returns without
// error, per the soft-timeout-never-corruption policy.
func (t *ThreadAwareFile) CloseAll(ctx context.Context) {
	if !t.acquireHousekeeping(ctx) {
		return
	}
	defer t.releaseHousekeeping()

	t.handles.Range(func(key, value any) bool {
		f := value.(*os.File)
		_ = f.Close()
		t.handles.Delete(key)
		t.closedSet.Store(key, struct{}{})
		return true
	})
}

// Cleanup drops bookkeeping for handles already closed via Close. It
// waits up to Timeout for the housekeeping lock; on timeout it logs a
// warning and returns, never treating the timeout as an error.
func (t *ThreadAwareFile) Cleanup(ctx context.Context) {
	if !t.acquireHousekeeping(ctx) {
		return
	}
	defer t.releaseHousekeeping()

	t.closedSet.Range(func(key, _ any) bool {
		t.closedSet.Delete(key)
		return true
	})
}

// acquireHousekeeping tries to take the housekeeping lock within
// t.Timeout (or ctx's own deadline, whichever is sooner). On timeout it
// logs a warning and returns false; callers treat that as "skip this
// housekeeping pass", never as an error.
func (t *ThreadAwareFile) acquireHousekeeping(ctx context.Context) bool {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-t.housekeeping:
		return true
	case <-timer.C:
		t.logger.Warn().Dur("timeout", timeout).Msg("housekeeping lock not acquired in time, skipping pass")
		return false
	case <-ctx.Done():
		t.logger.Warn().Err(ctx.Err()).Msg("housekeeping canceled before lock acquired")
		return false
	}
}

// releaseHousekeeping returns the housekeeping token.
func (t *ThreadAwareFile) releaseHousekeeping() {
	t.housekeeping <- struct{}{}
}

var errUnsupported = errors.New("threadfile: write access not supported")

// Write always fails: ThreadAwareFile is read-only by contract.
func (t *ThreadAwareFile) Write(CursorContext, []byte) (int, error) {
	return 0, errUnsupported
}
