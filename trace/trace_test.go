package trace

import (
	"testing"

	"github.com/wippyai/loom-runtime/assembly"
)

type fn struct{ name string }

func fixture(t *testing.T) (map[*fn]*assembly.Member, map[string]*fn) {
	t.Helper()
	a, err := assembly.Build(&assembly.Document{
		Name: "Game",
		Modules: []assembly.ModuleDoc{{Types: []assembly.TypeDoc{
			{ID: 1, Name: "Player", Package: "game", Members: []assembly.MemberDoc{
				{Name: "update"},
				{Name: "jump"},
			}},
			{ID: 2, Name: "Physics", Package: "game", Native: true, Members: []assembly.MemberDoc{
				{Name: "step", Static: true, Native: true},
			}},
		}}},
	}, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	player := a.Type("game.Player")
	physics := a.Type("game.Physics")
	fns := map[string]*fn{
		"update": {"update"},
		"jump":   {"jump"},
		"step":   {"step"},
	}
	members := map[*fn]*assembly.Member{
		fns["update"]: player.FindMember("update"),
		fns["jump"]:   player.FindMember("jump"),
		fns["step"]:   physics.FindMember("step"),
	}
	return members, fns
}

func lookupIn(members map[*fn]*assembly.Member) Lookup {
	return func(callable any) (*assembly.Member, bool) {
		f, ok := callable.(*fn)
		if !ok {
			return nil, false
		}
		m, ok := members[f]
		return m, ok
	}
}

func TestCapture(t *testing.T) {
	members, fns := fixture(t)

	raw := []RawFrame{
		{Callable: fns["step"], Native: true, Line: -1},
		{Callable: "pcall", Native: true},
		{Callable: fns["jump"], Source: "game.Player", Line: 12},
		{Callable: fns["update"], Source: "game.Player", Line: 4},
		{Callable: "main chunk", Source: "boot", Line: 1},
	}

	frames := Capture(raw, lookupIn(members))
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d: %v", len(frames), frames)
	}

	want := []string{
		"game.Physics:step : [NATIVE] : 0",
		"game.Player:jump : game.Player : 12",
		"game.Player:update : game.Player : 4",
	}
	for i, w := range want {
		if got := frames[i].String(); got != w {
			t.Errorf("frame %d = %q, want %q", i, got, w)
		}
	}
}

func TestCapture_CollapsesTrampoline(t *testing.T) {
	members, fns := fixture(t)

	raw := []RawFrame{
		{Callable: fns["step"], Native: true},
		{Callable: fns["step"], Native: true},
		{Callable: fns["update"], Source: "game.Player", Line: 7},
	}

	frames := Capture(raw, lookupIn(members))
	if len(frames) != 2 {
		t.Fatalf("expected duplicate native frame to collapse, got %v", frames)
	}
	if frames[0].Member != members[fns["step"]] {
		t.Error("first frame should be step")
	}
}

func TestCapture_CollapseAcrossSkippedFrames(t *testing.T) {
	members, fns := fixture(t)

	// An unknown frame between the two does not break adjacency.
	raw := []RawFrame{
		{Callable: fns["step"], Native: true},
		{Callable: "pcall", Native: true},
		{Callable: fns["step"], Native: true},
	}
	if frames := Capture(raw, lookupIn(members)); len(frames) != 1 {
		t.Errorf("expected 1 frame, got %v", frames)
	}
}

func TestCapture_KeepsScriptRecursion(t *testing.T) {
	members, fns := fixture(t)

	raw := []RawFrame{
		{Callable: fns["update"], Source: "game.Player", Line: 5},
		{Callable: fns["update"], Source: "game.Player", Line: 9},
	}
	if frames := Capture(raw, lookupIn(members)); len(frames) != 2 {
		t.Errorf("script recursion must not collapse, got %v", frames)
	}
}

func TestCapture_Empty(t *testing.T) {
	members, _ := fixture(t)
	if frames := Capture(nil, lookupIn(members)); len(frames) != 0 {
		t.Errorf("expected no frames, got %v", frames)
	}
}
