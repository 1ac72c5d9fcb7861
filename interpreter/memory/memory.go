// Package memory provides an in-memory implementation of the kernel
// operations. Every call is recorded so tests can assert on the exact
// sequence of hardware interactions, and any operation can be made to
// fail on demand.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/frobware/go-wbdisplay"
	"github.com/frobware/go-wbdisplay/action"
	"github.com/frobware/go-wbdisplay/interpreter"
)

// Operation names recorded by Kernel.
const (
	OpUpdateModeTable = "update-mode-table"
	OpReloadConnector = "reload-connector"
	OpAtomicCommit    = "atomic-commit"
	OpAtomicTest      = "atomic-test"
	OpAddFramebuffer  = "add-fb"
	OpRemoveFB        = "rm-fb"
	OpAllocateBuffer  = "alloc"
	OpFreeBuffer      = "free"
)

// ErrNoSuchObject is returned for unknown connector or framebuffer ids.
var ErrNoSuchObject = errors.New("no such object")

// Op is one recorded kernel interaction.
type Op struct {
	Op     string
	Detail string
	Err    error
}

// Normalizer rewrites a mode list the way a driver might when it
// accepts a mode-table update.
type Normalizer func([]wbdisplay.Mode) []wbdisplay.Mode

// Kernel implements interpreter.KernelOperations in memory.
type Kernel struct {
	mu sync.Mutex

	connectors map[uint32]wbdisplay.ConnectorInfo
	writeback  wbdisplay.Token
	normalize  Normalizer

	// retireFences enables asynchronous writeback: the frame lands in
	// the output buffer retireDelay after the commit, when its fence
	// signals.
	retireFences bool
	retireDelay  time.Duration

	nextFB  uint32
	fbs     map[uint32]wbdisplay.Buffer
	nextFD  int
	buffers map[int][]byte

	commits [][]action.Action
	tests   [][]action.Action
	ops     []Op
	failing map[string]error

	logger *slog.Logger
}

var _ interpreter.KernelOperations = (*Kernel)(nil)

// Option configures a Kernel.
type Option func(*Kernel)

// WithConnector adds a connector with the given metadata.
func WithConnector(id uint32, info wbdisplay.ConnectorInfo) Option {
	return func(k *Kernel) {
		info.Modes = slices.Clone(info.Modes)
		k.connectors[id] = info
	}
}

// WithWriteback sets the token returned by FindWriteback and adds an
// empty connector for it if none exists.
func WithWriteback(token wbdisplay.Token) Option {
	return func(k *Kernel) {
		k.writeback = token
		if _, ok := k.connectors[token.ConnectorID]; !ok {
			k.connectors[token.ConnectorID] = wbdisplay.ConnectorInfo{}
		}
	}
}

// WithNormalizer installs a function applied to every accepted mode
// table.
func WithNormalizer(fn Normalizer) Option {
	return func(k *Kernel) {
		k.normalize = fn
	}
}

// WithRetireFences makes every commit return a retire fence and
// complete the writeback asynchronously: the output buffer is written
// and the fence signalled delay after the commit.
func WithRetireFences(delay time.Duration) Option {
	return func(k *Kernel) {
		k.retireFences = true
		k.retireDelay = delay
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(k *Kernel) {
		k.logger = logger
	}
}

// New creates an in-memory kernel.
func New(opts ...Option) *Kernel {
	k := &Kernel{
		connectors: make(map[uint32]wbdisplay.ConnectorInfo),
		fbs:        make(map[uint32]wbdisplay.Buffer),
		buffers:    make(map[int][]byte),
		failing:    make(map[string]error),
		nextFB:     100,
		nextFD:     1000,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(k)
	}
	k.logger = k.logger.With("component", "memory")
	return k
}

// FailNext makes the next call of op return err.
func (k *Kernel) FailNext(op string, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.failing[op] = err
}

// Operations returns the recorded interactions in call order.
func (k *Kernel) Operations() []Op {
	k.mu.Lock()
	defer k.mu.Unlock()
	return slices.Clone(k.ops)
}

// OperationCount returns how many times op was called.
func (k *Kernel) OperationCount(op string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := 0
	for _, o := range k.ops {
		if o.Op == op {
			n++
		}
	}
	return n
}

// Commits returns the actions of every successful commit.
func (k *Kernel) Commits() [][]action.Action {
	k.mu.Lock()
	defer k.mu.Unlock()
	return slices.Clone(k.commits)
}

// Tests returns the actions of every successful test-only request.
func (k *Kernel) Tests() [][]action.Action {
	k.mu.Lock()
	defer k.mu.Unlock()
	return slices.Clone(k.tests)
}

// FramebufferCount returns the number of live framebuffers.
func (k *Kernel) FramebufferCount() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.fbs)
}

// Connector returns the current metadata of a connector.
func (k *Kernel) Connector(id uint32) (wbdisplay.ConnectorInfo, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	info, ok := k.connectors[id]
	info.Modes = slices.Clone(info.Modes)
	return info, ok
}

// record appends an op, consuming any injected failure for it.
// Callers hold k.mu.
func (k *Kernel) record(op, detail string) error {
	err := k.failing[op]
	delete(k.failing, op)
	k.ops = append(k.ops, Op{Op: op, Detail: detail, Err: err})
	return err
}

// UpdateModeTable replaces the connector's mode list.
func (k *Kernel) UpdateModeTable(_ context.Context, connectorID uint32, connected bool, modes []wbdisplay.Mode) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.record(OpUpdateModeTable, fmt.Sprintf("conn=%d modes=%d", connectorID, len(modes))); err != nil {
		return err
	}
	info, ok := k.connectors[connectorID]
	if !ok {
		return fmt.Errorf("connector %d: %w", connectorID, ErrNoSuchObject)
	}

	modes = slices.Clone(modes)
	if k.normalize != nil {
		modes = k.normalize(modes)
	}
	info.Modes = modes
	info.Connected = connected
	k.connectors[connectorID] = info
	k.logger.Debug("mode table updated", "connector_id", connectorID, "modes", len(modes), "connected", connected)
	return nil
}

// ReloadConnector returns the connector's metadata.
func (k *Kernel) ReloadConnector(_ context.Context, connectorID uint32) (wbdisplay.ConnectorInfo, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.record(OpReloadConnector, fmt.Sprintf("conn=%d", connectorID)); err != nil {
		return wbdisplay.ConnectorInfo{}, err
	}
	info, ok := k.connectors[connectorID]
	if !ok {
		return wbdisplay.ConnectorInfo{}, fmt.Errorf("connector %d: %w", connectorID, ErrNoSuchObject)
	}
	info.Modes = slices.Clone(info.Modes)
	return info, nil
}

// AtomicCommit validates the actions and, on success, writes a test
// pattern into the output framebuffer so captures show a frame.
func (k *Kernel) AtomicCommit(_ context.Context, actions []action.Action) (interpreter.CommitResult, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.record(OpAtomicCommit, fmt.Sprintf("props=%d", len(actions))); err != nil {
		return interpreter.CommitResult{}, err
	}
	if err := k.check(actions); err != nil {
		return interpreter.CommitResult{}, err
	}
	k.commits = append(k.commits, slices.Clone(actions))
	frame := len(k.commits)
	if !k.retireFences {
		k.render(actions, frame)
		return interpreter.CommitResult{}, nil
	}

	fence, signal, err := os.Pipe()
	if err != nil {
		return interpreter.CommitResult{}, fmt.Errorf("create retire fence: %w", err)
	}
	actions = slices.Clone(actions)
	time.AfterFunc(k.retireDelay, func() {
		k.mu.Lock()
		k.render(actions, frame)
		k.mu.Unlock()
		// The reader may already be closed; the frame is done either way.
		_, _ = signal.Write([]byte{1})
		signal.Close()
		k.logger.Debug("retire fence signalled", "frame", frame)
	})
	return interpreter.CommitResult{RetireFence: fence}, nil
}

// AtomicTest validates the actions without recording a commit.
func (k *Kernel) AtomicTest(_ context.Context, actions []action.Action) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.record(OpAtomicTest, fmt.Sprintf("props=%d", len(actions))); err != nil {
		return err
	}
	if err := k.check(actions); err != nil {
		return err
	}
	k.tests = append(k.tests, slices.Clone(actions))
	return nil
}

// check rejects requests naming unknown objects, as the kernel would.
func (k *Kernel) check(actions []action.Action) error {
	if _, err := interpreter.PropertyWrites(actions); err != nil {
		return err
	}
	for _, a := range actions {
		switch a := a.(type) {
		case action.SetOutputFramebuffer:
			if _, ok := k.fbs[a.FramebufferID]; !ok {
				return fmt.Errorf("framebuffer %d: %w", a.FramebufferID, ErrNoSuchObject)
			}
		case action.SetConnectorCRTC:
			if _, ok := k.connectors[a.ConnectorID]; !ok {
				return fmt.Errorf("connector %d: %w", a.ConnectorID, ErrNoSuchObject)
			}
		}
	}
	return nil
}

// render fills the committed output buffer with a solid colour that
// changes every frame.
func (k *Kernel) render(actions []action.Action, frame int) {
	for _, a := range actions {
		out, ok := a.(action.SetOutputFramebuffer)
		if !ok {
			continue
		}
		buf := k.fbs[out.FramebufferID]
		data, ok := k.buffers[buf.Key()]
		if !ok {
			continue
		}
		shade := byte(frame * 40)
		for i := 0; i+3 < len(data); i += 4 {
			data[i+0] = shade        // B
			data[i+1] = 0x80         // G
			data[i+2] = 0xff - shade // R
			data[i+3] = 0xff         // X
		}
	}
}

// AddFramebuffer registers a framebuffer for buf.
func (k *Kernel) AddFramebuffer(_ context.Context, buf wbdisplay.Buffer) (uint32, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.record(OpAddFramebuffer, fmt.Sprintf("handle=%d", buf.Key())); err != nil {
		return 0, err
	}
	k.nextFB++
	k.fbs[k.nextFB] = buf
	return k.nextFB, nil
}

// RemoveFramebuffer destroys a framebuffer.
func (k *Kernel) RemoveFramebuffer(_ context.Context, fbID uint32) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.record(OpRemoveFB, fmt.Sprintf("fb=%d", fbID)); err != nil {
		return err
	}
	if _, ok := k.fbs[fbID]; !ok {
		return fmt.Errorf("framebuffer %d: %w", fbID, ErrNoSuchObject)
	}
	delete(k.fbs, fbID)
	return nil
}

// AllocateBuffer returns a linear 32bpp buffer backed by memory.
func (k *Kernel) AllocateBuffer(_ context.Context, width, height, format uint32) (wbdisplay.Buffer, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.record(OpAllocateBuffer, fmt.Sprintf("%dx%d", width, height)); err != nil {
		return wbdisplay.Buffer{}, err
	}
	if width == 0 || height == 0 {
		return wbdisplay.Buffer{}, fmt.Errorf("allocate %dx%d: %w", width, height, wbdisplay.ErrInvalidParameters)
	}
	fd := k.nextFD
	k.nextFD++
	k.buffers[fd] = make([]byte, int(width)*int(height)*4)
	return wbdisplay.Buffer{
		Planes: []wbdisplay.Plane{{FD: fd, Stride: width * 4}},
		Width:  width,
		Height: height,
		Format: format,
	}, nil
}

// FreeBuffer releases a buffer from AllocateBuffer.
func (k *Kernel) FreeBuffer(_ context.Context, buf wbdisplay.Buffer) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.record(OpFreeBuffer, fmt.Sprintf("handle=%d", buf.Key())); err != nil {
		return err
	}
	delete(k.buffers, buf.Key())
	return nil
}

// ReadBuffer returns a copy of the buffer contents.
func (k *Kernel) ReadBuffer(_ context.Context, buf wbdisplay.Buffer) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	data, ok := k.buffers[buf.Key()]
	if !ok {
		return nil, fmt.Errorf("buffer %d: %w", buf.Key(), ErrNoSuchObject)
	}
	return slices.Clone(data), nil
}

// FindWriteback returns the configured writeback token.
func (k *Kernel) FindWriteback(_ context.Context) (wbdisplay.Token, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.writeback == (wbdisplay.Token{}) {
		return wbdisplay.Token{}, fmt.Errorf("writeback connector: %w", ErrNoSuchObject)
	}
	return k.writeback, nil
}

// Close is a no-op.
func (k *Kernel) Close() error {
	return nil
}
