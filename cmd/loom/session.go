package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/loom-runtime/config"
	"github.com/wippyai/loom-runtime/engine"
	"github.com/wippyai/loom-runtime/runtime"
	"github.com/wippyai/loom-runtime/wasmnative"
)

// session is one opened State with the system assembly loaded.
type session struct {
	state   *runtime.State
	logger  *zap.Logger
	wasm    wazero.Runtime
	natives []*wasmnative.Binding
}

func openSession(ctx context.Context, cfg *config.Config, logger *zap.Logger, exit func(int)) (*session, error) {
	runtime.SetLogger(logger)
	engine.SetLogger(logger)
	wasmnative.SetLogger(logger)

	s := &session{logger: logger}

	reg := runtime.NewRegistry()
	bindings := runtime.DefaultBindings(reg)

	if len(cfg.Wasm.Modules) > 0 {
		s.wasm = wasmnative.NewRuntime(ctx, cfg.Wasm.MemoryLimitPages)
		for _, m := range cfg.Wasm.Modules {
			code, err := os.ReadFile(m.Path)
			if err != nil {
				s.close(ctx)
				return nil, fmt.Errorf("read wasm module for %s: %w", m.Type, err)
			}
			b, err := wasmnative.Load(ctx, s.wasm, "wasm:"+filepath.Base(m.Path), code)
			if err != nil {
				s.close(ctx)
				return nil, err
			}
			s.natives = append(s.natives, b)
			if err := bindings.Register(m.Type, b); err != nil {
				s.close(ctx)
				return nil, err
			}
			logger.Debug("wasm binding registered",
				zap.String("type", m.Type),
				zap.Strings("exports", b.Exports()))
		}
	}

	s.state = runtime.NewState(runtime.Options{
		Config:   cfg,
		Bindings: bindings,
		Registry: reg,
		Logger:   logger,
		Exit:     exit,
	})
	s.state.Open()

	if _, err := s.state.LoadSystem(); err != nil {
		s.close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *session) close(ctx context.Context) {
	if s.state != nil && s.state.Phase() != runtime.PhaseClosed {
		s.state.Close()
	}
	for _, b := range s.natives {
		_ = b.Close(ctx)
	}
	if s.wasm != nil {
		_ = s.wasm.Close(ctx)
	}
	_ = s.logger.Sync()
}
