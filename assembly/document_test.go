package assembly

import (
	"bytes"
	"testing"

	"github.com/wippyai/loom-runtime/errors"
)

const gameJSON = `{
  "name": "Game",
  "entry": {"type": "game.Main"},
  "modules": [{
    "name": "main",
    "types": [
      {"id": 1, "name": "Main", "package": "game", "static_init": "Main.count = 0",
       "members": [{"name": "main", "static": true, "body": "return 7", "line": 3}]}
    ]
  }]
}`

func TestParseText(t *testing.T) {
	doc, err := ParseText([]byte(gameJSON))
	if err != nil {
		t.Fatalf("ParseText failed: %v", err)
	}
	if doc.Name != "Game" || doc.Entry == nil || doc.Entry.Type != "game.Main" {
		t.Fatalf("unexpected document %+v", doc)
	}

	a := mustBuild(t, doc, nil)
	main := a.Type("game.Main")
	if main == nil || main.StaticInit() != "Main.count = 0" {
		t.Fatalf("unexpected type %v", main)
	}
	if m := main.FindMember("main"); m == nil || m.Line() != 3 || m.Body() != "return 7" {
		t.Errorf("unexpected member %+v", m)
	}
}

func TestParse_Malformed(t *testing.T) {
	if _, err := ParseText([]byte(`{"name": `)); !errors.IsFormat(err) {
		t.Errorf("expected format error for text, got %v", err)
	}
	if _, err := ParseBinary([]byte{0xff, 0x00}); !errors.IsFormat(err) {
		t.Errorf("expected format error for binary, got %v", err)
	}
}

func TestBinaryForm(t *testing.T) {
	doc := gameDoc()
	raw, err := MarshalBinary(doc)
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}

	again, err := MarshalBinary(doc)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(raw, again) {
		t.Error("binary encoding should be deterministic")
	}

	parsed, err := ParseBinary(raw)
	if err != nil {
		t.Fatalf("ParseBinary failed: %v", err)
	}
	a := mustBuild(t, parsed, nil)
	if a.TypeCount() != 3 || a.Type("game.Player").Base() == nil {
		t.Errorf("binary form lost structure")
	}
}

func TestBuiltins(t *testing.T) {
	var types []TypeDoc
	for i, k := range RequiredBuiltins {
		full := k.FullName()
		pkg, name := "system", full[len("system."):]
		if k == BuiltinType {
			pkg, name = "system.reflection", "Type"
		}
		types = append(types, TypeDoc{ID: uint32(i + 1), Name: name, Package: pkg})
	}
	a := mustBuild(t, &Document{Name: "System", Modules: []ModuleDoc{{Types: types}}}, nil)

	var b Builtins
	if k, missing := b.FirstMissing(); !missing || k != BuiltinNull {
		t.Errorf("empty cache should report Null missing, got %v", k)
	}

	for _, typ := range a.Types()[:len(RequiredBuiltins)-1] {
		if !b.Record(typ) {
			t.Errorf("%s should be recorded", typ)
		}
	}
	if k, missing := b.FirstMissing(); !missing || k != BuiltinVector {
		t.Errorf("expected Vector missing, got %v", k)
	}

	vec := a.Type("system.Vector")
	b.Record(vec)
	if _, missing := b.FirstMissing(); missing {
		t.Error("all builtins should be present")
	}
	if b.Get(BuiltinVector) != vec || vec.Builtin() != BuiltinVector {
		t.Error("vector not tagged")
	}
	if a.Type("system.reflection.Type").Builtin() != BuiltinType {
		t.Error("reflection type not tagged")
	}

	if LookupBuiltin("game.Player") != BuiltinNone {
		t.Error("non-builtin name resolved")
	}
	if BuiltinNone.String() != "none" || BuiltinString.String() != "system.String" {
		t.Error("unexpected String output")
	}
}
