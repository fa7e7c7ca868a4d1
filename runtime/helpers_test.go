package runtime

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/loom-runtime/config"
	"github.com/wippyai/loom-runtime/native"
)

const gameJSON = `{
  "name": "Game",
  "uid": "game-uid",
  "entry": {"type": "game.Main", "method": "boot"},
  "modules": [{"name": "game", "types": [
    {"id": 1, "name": "Entity", "package": "game", "source": "game/Entity.ls", "base": "system.Object",
     "static_init": "self.ready = true",
     "members": [
       {"name": "hp", "kind": "field", "default": "10"},
       {"name": "count", "kind": "field", "static": true, "default": "0"},
       {"name": "constructor", "params": ["name"], "body": "self.name = name\nEntity.count = Entity.count + 1", "line": 5},
       {"name": "damage", "params": ["n"], "body": "self.hp = self.hp - n\nreturn self.hp", "line": 9},
       {"name": "label", "kind": "property", "getter": "return self.name .. ':' .. self.hp"}
     ]},
    {"id": 2, "name": "Player", "package": "game", "source": "game/Player.ls", "base": "game.Entity",
     "members": [
       {"name": "score", "kind": "field", "default": "self.hp * 2"},
       {"name": "damage", "params": ["n"], "body": "local hp = Entity.damage(self, n * 2)\nreturn hp", "line": 3}
     ]},
    {"id": 3, "name": "Main", "package": "game", "source": "game/Main.ls", "imports": ["game.Player"],
     "members": [
       {"name": "boot", "static": true, "body": "Main.booted = true", "line": 2},
       {"name": "run", "static": true, "body": "local p = Player.new('ann')\nreturn p:damage(3), p.score, p:get_label(), Entity.count, Entity.ready, p:getFullTypeName()", "line": 4},
       {"name": "fail", "static": true, "body": "local x = nil\nreturn x.y", "line": 7},
       {"name": "json", "static": true, "body": "return JSON.stringify(JSON.parse('{\"a\":[1,2]}'), false)", "line": 10},
       {"name": "alloc", "static": true, "body": "return VM.allocatedBytes()", "line": 12},
       {"name": "vector", "static": true, "body": "local v = Vector.new()\nv:push('x')\nv:push('y')\nreturn v:getLength(), v:get(2), v:get_length()", "line": 14},
       {"name": "installTick", "static": true, "body": "VM._tick = function() Main.ticks = (Main.ticks or 0) + 1 end", "line": 18},
       {"name": "add", "static": true, "params": ["a", "b"], "body": "return a + b", "line": 20},
       {"name": "helper", "body": "return 1", "line": 22},
       {"name": "args", "static": true, "body": "local a = VM.getCommandLine()\nreturn #a, a[1], a[2]", "line": 24}
     ]},
    {"id": 4, "name": "Ghost", "package": "game", "base": "game.Phantom"},
    {"id": 5, "name": "Haunted", "package": "game", "imports": ["game.Ghost"]}
  ]}]
}`

type harness struct {
	st    *State
	logs  *observer.ObservedLogs
	exits []int
}

func newHarness(t *testing.T, register func(*Registry, *native.Table)) *harness {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	h := &harness{logs: logs}

	reg := NewRegistry()
	bindings := DefaultBindings(reg)
	if register != nil {
		register(reg, bindings)
	}

	cfg := config.Default()
	cfg.ValidateTypes = true

	h.st = NewState(Options{
		Config:   cfg,
		Bindings: bindings,
		Registry: reg,
		Logger:   zap.New(core),
		Exit:     func(code int) { h.exits = append(h.exits, code) },
	})
	h.st.Open()
	t.Cleanup(func() {
		if h.st.Phase() != PhaseClosed {
			h.st.Close()
		}
	})
	return h
}

func (h *harness) loadSystem(t *testing.T) {
	t.Helper()
	if _, err := h.st.LoadSystem(); err != nil {
		t.Fatalf("LoadSystem failed: %v", err)
	}
}

func (h *harness) loadGame(t *testing.T) {
	t.Helper()
	h.loadSystem(t)
	if _, err := h.st.LoadAssemblyText([]byte(gameJSON)); err != nil {
		t.Fatalf("LoadAssemblyText failed: %v", err)
	}
}

func (h *harness) messages() string {
	var out []string
	for _, e := range h.logs.All() {
		out = append(out, e.Message)
	}
	return strings.Join(out, "\n")
}

func expectPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	fn()
}
