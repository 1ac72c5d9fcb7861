package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/frobware/go-wbdisplay"
	"github.com/frobware/go-wbdisplay/config"
	"github.com/frobware/go-wbdisplay/device"
	"github.com/frobware/go-wbdisplay/interpreter"
	"github.com/frobware/go-wbdisplay/interpreter/drm"
	"github.com/frobware/go-wbdisplay/interpreter/memory"
	"github.com/frobware/go-wbdisplay/lock"
	"github.com/frobware/go-wbdisplay/manager"
	"github.com/frobware/go-wbdisplay/registry"
)

// fakeToken is the writeback pipe of the in-memory hardware.
var fakeToken = wbdisplay.Token{ConnectorID: 1, CRTCID: 1}

// Runtime is an initialised display plus the buffer allocator commands
// use to feed it.
type Runtime struct {
	Display *manager.Manager
	Buffers interpreter.BufferAllocator
	Config  config.Config
	Dirs    config.RuntimeDirs
	Logger  *slog.Logger
}

// WithRuntime opens the display, runs fn and closes the display. A real
// device is held under its lock for the duration.
func (c *CLI) WithRuntime(ctx context.Context, fn func(context.Context, *Runtime) error) error {
	cfg, err := c.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := c.Logger(cfg)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	dirs, err := config.NewRuntimeDirs(cfg.Runtime.Dir)
	if err != nil {
		return err
	}

	if c.Fake {
		kernel := memory.New(memory.WithLogger(logger), memory.WithWriteback(fakeToken))
		return runDisplay(ctx, kernel, cfg, dirs, logger, fn)
	}

	if err := dirs.EnsureDirectories(); err != nil {
		return err
	}

	return lock.Run(ctx, dirs.DeviceLock(cfg.Device.Path), func(ctx context.Context, scope lock.Scope) error {
		logger.Debug("device lock acquired", "lock", scope.Path(), "fd", scope.FD())
		kernel, err := drm.Open(cfg.Device.Path, drm.WithLogger(logger))
		if err != nil {
			return err
		}
		return runDisplay(ctx, kernel, cfg, dirs, logger, fn)
	})
}

func runDisplay(ctx context.Context, kernel interpreter.KernelOperations, cfg config.Config, dirs config.RuntimeDirs, logger *slog.Logger, fn func(context.Context, *Runtime) error) (err error) {
	token, ok := cfg.Device.Token()
	if !ok {
		token, err = kernel.FindWriteback(ctx)
		if err != nil {
			kernel.Close()
			return err
		}
	}

	base := device.New(kernel, token, cfg.Device.Resources(), logger)
	reg := registry.New(kernel, cfg.Registry.CycleDelay, logger)
	display := manager.New(base, reg, logger)
	defer func() {
		err = errors.Join(err, display.Close(context.WithoutCancel(ctx)))
	}()

	if err := display.Init(ctx); err != nil {
		return err
	}
	return fn(ctx, &Runtime{
		Display: display,
		Buffers: kernel,
		Config:  cfg,
		Dirs:    dirs,
		Logger:  logger,
	})
}

// allocate returns n output buffers sized for attrs. The returned
// function frees them.
func (r *Runtime) allocate(ctx context.Context, attrs wbdisplay.DisplayAttributes, n int) ([]wbdisplay.Buffer, func(), error) {
	var bufs []wbdisplay.Buffer
	free := func() {
		for _, b := range bufs {
			if err := r.Buffers.FreeBuffer(ctx, b); err != nil {
				r.Logger.Warn("failed to free buffer", "handle", b.Key(), "error", err)
			}
		}
	}
	for range n {
		b, err := r.Buffers.AllocateBuffer(ctx, attrs.XPixels, attrs.YPixels, wbdisplay.FormatXRGB8888)
		if err != nil {
			free()
			return nil, nil, err
		}
		bufs = append(bufs, b)
	}
	return bufs, free, nil
}
