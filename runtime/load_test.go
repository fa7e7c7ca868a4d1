package runtime

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/loom-runtime/assembly"
	"github.com/wippyai/loom-runtime/container"
	"github.com/wippyai/loom-runtime/errors"
)

func TestLoadSystem(t *testing.T) {
	h := newHarness(t, nil)
	h.loadSystem(t)

	st := h.st
	if st.Phase() != PhaseReady {
		t.Errorf("expected ready, got %s", st.Phase())
	}
	if !st.Engine().GCRunning() {
		t.Error("collector should run once the state is ready")
	}

	for _, k := range assembly.RequiredBuiltins {
		b := st.Builtin(k)
		if b == nil {
			t.Errorf("builtin %s not cached", k)
			continue
		}
		if b.Builtin() != k {
			t.Errorf("builtin %s tagged %s", k, b.Builtin())
		}
	}
	if st.Builtin(assembly.BuiltinObject) == nil {
		t.Error("system.Object should be cached when present")
	}

	class := st.Class("system.Vector")
	if class == nil {
		t.Fatal("system.Vector has no class")
	}
	if name := class.RawGetString("__name"); name.String() != "system.Vector" {
		t.Errorf("unexpected __name %v", name)
	}
	if st.VM().GetGlobal("Vector") != class {
		t.Error("short name alias not installed")
	}
	if st.Type("system.JSON").HostTypeName() != "native.JSON" {
		t.Errorf("host type not stamped: %q", st.Type("system.JSON").HostTypeName())
	}
	if !st.bindings.Frozen() {
		t.Error("binding table should be frozen after the first load")
	}
}

func TestLoadAssembly_EndToEnd(t *testing.T) {
	h := newHarness(t, nil)
	h.loadGame(t)
	st := h.st
	ctx := context.Background()

	if booted := st.Class("game.Main").RawGetString("booted"); booted != lua.LTrue {
		t.Error("entry point did not run")
	}

	rets, err := st.InvokeStaticMethod(ctx, "game.Main", "run")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	want := []lua.LValue{
		lua.LNumber(4),
		lua.LNumber(20),
		lua.LString("ann:4"),
		lua.LNumber(1),
		lua.LTrue,
		lua.LString("game.Player"),
	}
	if len(rets) != len(want) {
		t.Fatalf("expected %d results, got %d: %v", len(want), len(rets), rets)
	}
	for i := range want {
		if rets[i] != want[i] {
			t.Errorf("result %d = %v, want %v", i, rets[i], want[i])
		}
	}

	rets, err = st.InvokeStaticMethod(ctx, "game.Main", "add", lua.LNumber(2), lua.LNumber(40))
	if err != nil || len(rets) != 1 || rets[0] != lua.LNumber(42) {
		t.Errorf("add returned %v, %v", rets, err)
	}

	rets, err = st.InvokeStaticMethod(ctx, "game.Main", "json")
	if err != nil || len(rets) != 1 || rets[0] != lua.LString(`{"a":[1,2]}`) {
		t.Errorf("json returned %v, %v", rets, err)
	}

	rets, err = st.InvokeStaticMethod(ctx, "game.Main", "vector")
	if err != nil || len(rets) != 3 {
		t.Fatalf("vector returned %v, %v", rets, err)
	}
	if rets[0] != lua.LNumber(2) || rets[1] != lua.LString("y") || rets[2] != lua.LNumber(2) {
		t.Errorf("unexpected vector results %v", rets)
	}

	rets, err = st.InvokeStaticMethod(ctx, "game.Main", "alloc")
	if err != nil || len(rets) != 1 {
		t.Fatalf("alloc returned %v, %v", rets, err)
	}
	if n, ok := rets[0].(lua.LNumber); !ok || n <= 0 || int64(n) != st.AllocatedBytes() {
		t.Errorf("allocatedBytes = %v, state reports %d", rets[0], st.AllocatedBytes())
	}

	if top := st.VM().GetTop(); top != 0 {
		t.Errorf("calls left %d values on the stack", top)
	}
	if len(h.exits) != 0 {
		t.Errorf("unexpected exits %v", h.exits)
	}
}

func TestLoadAssembly_PrunesMissing(t *testing.T) {
	h := newHarness(t, nil)
	h.loadGame(t)
	st := h.st

	a := st.Assembly("Game")
	if a == nil {
		t.Fatal("assembly not registered")
	}
	if a.TypeCount() != 3 {
		t.Errorf("expected 3 live types, got %d", a.TypeCount())
	}
	if a.DeclaredTypeCount() != 5 {
		t.Errorf("ordinal table should keep its declared size, got %d", a.DeclaredTypeCount())
	}
	if a.OrdinalType(4) != nil || a.OrdinalType(5) != nil {
		t.Error("pruned types still reachable by ordinal")
	}
	if a.OrdinalType(3) != st.Type("game.Main") {
		t.Error("ordinal lookup of a live type failed")
	}

	for _, name := range []string{"game.Ghost", "game.Haunted"} {
		if st.Type(name) != nil {
			t.Errorf("%s still in the type cache", name)
		}
		if st.Class(name) != nil {
			t.Errorf("%s was declared", name)
		}
	}

	warnings := h.logs.FilterMessage("type pruned").All()
	if len(warnings) != 2 {
		t.Fatalf("expected 2 pruning warnings, got %d", len(warnings))
	}
	reasons := map[string]string{}
	for _, w := range warnings {
		ctx := w.ContextMap()
		reasons[ctx["type"].(string)] = ctx["reason"].(string)
	}
	if reasons["game.Ghost"] != "missing base type game.Phantom" {
		t.Errorf("unexpected Ghost reason %q", reasons["game.Ghost"])
	}
	if reasons["game.Haunted"] != "missing import game.Ghost" {
		t.Errorf("unexpected Haunted reason %q", reasons["game.Haunted"])
	}
	if st.Err() != nil {
		t.Errorf("pruning must not poison the state: %v", st.Err())
	}
}

func TestQueries(t *testing.T) {
	h := newHarness(t, nil)
	h.loadGame(t)
	st := h.st

	if st.Assembly("Game.loom") != st.Assembly("Game") {
		t.Error("lookup with extension failed")
	}
	if st.AssemblyByUID("game-uid") != st.Assembly("Game") {
		t.Error("lookup by uid failed")
	}
	if st.Assembly("Nope") != nil {
		t.Error("unexpected assembly")
	}
	if got := len(st.Assemblies()); got != 2 {
		t.Errorf("expected 2 assemblies, got %d", got)
	}
	if got := len(st.PackageTypes("game")); got != 3 {
		t.Errorf("expected 3 game types, got %d", got)
	}
	if got := len(st.PackageTypes("system.reflection")); got != 1 {
		t.Errorf("expected 1 reflection type, got %d", got)
	}
	uid := st.Engine().Registry("assemblies").RawGetString("game-uid")
	if uid != lua.LString("Game") {
		t.Errorf("assemblies registry holds %v", uid)
	}
}

func TestLoad_MissingBuiltinIsFatal(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.st.LoadAssemblyText([]byte(gameJSON))
	if errors.KindOf(err) != errors.KindBuiltinMissing {
		t.Fatalf("expected builtin_missing, got %v", err)
	}
	if !errors.IsFatal(err) {
		t.Error("builtin_missing should be fatal")
	}
	if h.st.Err() != err {
		t.Error("fatal error should poison the state")
	}
	if _, err := h.st.LoadSystem(); err != h.st.Err() {
		t.Errorf("poisoned state accepted a load: %v", err)
	}
}

func TestLoad_Duplicates(t *testing.T) {
	h := newHarness(t, nil)
	h.loadGame(t)

	_, err := h.st.LoadAssemblyText([]byte(gameJSON))
	if errors.KindOf(err) != errors.KindDuplicate {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if h.st.Err() == nil {
		t.Error("duplicate assembly should poison the state")
	}
}

func TestLoad_FormatErrors(t *testing.T) {
	tests := []struct {
		name string
		load func(st *State) error
	}{
		{"text", func(st *State) error {
			_, err := st.LoadAssemblyText([]byte("{not json"))
			return err
		}},
		{"binary", func(st *State) error {
			_, err := st.LoadAssemblyBinary([]byte{0xff, 0x00})
			return err
		}},
		{"container", func(st *State) error {
			_, err := st.LoadExecutableBinary([]byte("definitely not a container"))
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			err := tt.load(h.st)
			if !errors.IsFormat(err) {
				t.Fatalf("expected format error, got %v", err)
			}
			if h.st.Err() == nil {
				t.Error("format error should poison the state")
			}
		})
	}
}

func TestLoadExecutableBinary(t *testing.T) {
	h := newHarness(t, nil)
	h.loadSystem(t)

	doc, err := assembly.ParseText([]byte(gameJSON))
	if err != nil {
		t.Fatal(err)
	}
	raw, err := assembly.MarshalBinary(doc)
	if err != nil {
		t.Fatal(err)
	}
	buf, err := container.Encode(raw)
	if err != nil {
		t.Fatal(err)
	}

	before := h.st.AllocatedBytes()
	a, err := h.st.LoadExecutableBinary(buf)
	if err != nil {
		t.Fatalf("LoadExecutableBinary failed: %v", err)
	}
	if a.Name() != "Game" || h.st.Class("game.Main") == nil {
		t.Error("executable not finalized")
	}

	// Only compiled sources stay charged; the container buffers are released.
	grown := h.st.AllocatedBytes() - before
	if grown <= 0 || grown >= int64(len(buf)+len(raw)+len(gameJSON)) {
		t.Errorf("unexpected allocation growth %d", grown)
	}
}

func TestLoadExecutable(t *testing.T) {
	h := newHarness(t, nil)
	h.loadSystem(t)

	dir := t.TempDir()
	h.st.Config().BinDir = dir

	doc, err := assembly.ParseText([]byte(gameJSON))
	if err != nil {
		t.Fatal(err)
	}
	raw, err := assembly.MarshalBinary(doc)
	if err != nil {
		t.Fatal(err)
	}
	buf, err := container.Encode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Game.loom"), buf, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = h.st.LoadExecutable("Nope", false)
	if errors.KindOf(err) != errors.KindNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
	if h.st.Err() != nil {
		t.Fatal("a missing file must not poison the state")
	}

	a, err := h.st.LoadExecutable("Game", false)
	if err != nil {
		t.Fatalf("LoadExecutable failed: %v", err)
	}
	if a != h.st.Assembly("Game.loom") {
		t.Error("loaded assembly not registered")
	}
}

type memExecutable struct {
	buf    []byte
	closed bool
}

func (m *memExecutable) Bytes() []byte { return m.buf }

func (m *memExecutable) Close() error {
	m.closed = true
	return nil
}

func TestLoadExecutableFrom(t *testing.T) {
	h := newHarness(t, nil)
	h.loadSystem(t)

	doc, err := assembly.ParseText([]byte(gameJSON))
	if err != nil {
		t.Fatal(err)
	}
	raw, err := assembly.MarshalBinary(doc)
	if err != nil {
		t.Fatal(err)
	}
	buf, err := container.Encode(raw)
	if err != nil {
		t.Fatal(err)
	}

	exe := &memExecutable{buf: buf}
	if _, err := h.st.LoadExecutableFrom(exe); err != nil {
		t.Fatalf("LoadExecutableFrom failed: %v", err)
	}
	if !exe.closed {
		t.Error("provider not closed")
	}

	bad := &memExecutable{buf: []byte("nope")}
	if _, err := h.st.LoadExecutableFrom(bad); !errors.IsFormat(err) {
		t.Errorf("expected format error, got %v", err)
	}
	if !bad.closed {
		t.Error("provider not closed after a failed load")
	}
}

func TestCompilingDefersFinalize(t *testing.T) {
	h := newHarness(t, nil)
	h.loadSystem(t)
	st := h.st

	st.SetCompiling(true)
	a, err := st.LoadAssemblyText([]byte(gameJSON))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if st.Type("game.Main") == nil {
		t.Error("types should be cached")
	}
	if st.Class("game.Main") != nil {
		t.Error("class declared while compiling")
	}

	if err := st.FinalizeAssembly(a); err != nil {
		t.Fatalf("FinalizeAssembly failed: %v", err)
	}
	if st.Class("game.Main") == nil {
		t.Error("finalize did not declare classes")
	}
	if st.Phase() != PhaseReady {
		t.Errorf("expected ready, got %s", st.Phase())
	}
}

func TestLoadTypeAssembly(t *testing.T) {
	h := newHarness(t, nil)
	h.loadSystem(t)

	a, err := h.st.LoadTypeAssembly([]byte(gameJSON))
	if err != nil {
		t.Fatalf("LoadTypeAssembly failed: %v", err)
	}
	if h.st.Class("game.Entity") != nil {
		t.Error("type-only load declared a class")
	}
	if got := h.st.Type("game.Player"); got == nil || got.Base() != h.st.Type("game.Entity") {
		t.Error("type graph not resolved")
	}
	if !strings.HasPrefix(a.Types()[0].FullName(), "game.") {
		t.Errorf("unexpected first type %s", a.Types()[0].FullName())
	}
}
