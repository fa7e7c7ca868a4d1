package assembly

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/goccy/go-json"

	"github.com/wippyai/loom-runtime/errors"
)

// Document is the structured form of a compiled assembly as produced by the
// compiler. The textual form is JSON, the binary form is CBOR.
type Document struct {
	Name       string      `json:"name" cbor:"name"`
	UID        string      `json:"uid,omitempty" cbor:"uid,omitempty"`
	Version    string      `json:"version,omitempty" cbor:"version,omitempty"`
	References []string    `json:"references,omitempty" cbor:"references,omitempty"`
	Entry      *EntryDoc   `json:"entry,omitempty" cbor:"entry,omitempty"`
	Modules    []ModuleDoc `json:"modules" cbor:"modules"`
}

// EntryDoc names the static method run when the assembly is bootstrapped.
type EntryDoc struct {
	Type   string `json:"type" cbor:"type"`
	Method string `json:"method,omitempty" cbor:"method,omitempty"`
}

type ModuleDoc struct {
	Name  string    `json:"name" cbor:"name"`
	Types []TypeDoc `json:"types" cbor:"types"`
}

type TypeDoc struct {
	ID         uint32      `json:"id" cbor:"id"`
	Name       string      `json:"name" cbor:"name"`
	Package    string      `json:"package,omitempty" cbor:"package,omitempty"`
	Source     string      `json:"source,omitempty" cbor:"source,omitempty"`
	Base       string      `json:"base,omitempty" cbor:"base,omitempty"`
	Imports    []string    `json:"imports,omitempty" cbor:"imports,omitempty"`
	Native     bool        `json:"native,omitempty" cbor:"native,omitempty"`
	Managed    bool        `json:"managed,omitempty" cbor:"managed,omitempty"`
	Missing    string      `json:"missing,omitempty" cbor:"missing,omitempty"`
	StaticInit string      `json:"static_init,omitempty" cbor:"static_init,omitempty"`
	Members    []MemberDoc `json:"members,omitempty" cbor:"members,omitempty"`
}

type MemberDoc struct {
	Name    string   `json:"name" cbor:"name"`
	Kind    string   `json:"kind,omitempty" cbor:"kind,omitempty"`
	Static  bool     `json:"static,omitempty" cbor:"static,omitempty"`
	Native  bool     `json:"native,omitempty" cbor:"native,omitempty"`
	Params  []string `json:"params,omitempty" cbor:"params,omitempty"`
	Body    string   `json:"body,omitempty" cbor:"body,omitempty"`
	Line    int      `json:"line,omitempty" cbor:"line,omitempty"`
	Default string   `json:"default,omitempty" cbor:"default,omitempty"`
	Getter  string   `json:"getter,omitempty" cbor:"getter,omitempty"`
	Setter  string   `json:"setter,omitempty" cbor:"setter,omitempty"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("assembly: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// ParseText decodes the JSON form of an assembly.
func ParseText(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.FormatCause(errors.PhaseLoad, "parse assembly text", err)
	}
	return &doc, nil
}

// ParseBinary decodes the CBOR form of an assembly.
func ParseBinary(data []byte) (*Document, error) {
	var doc Document
	if err := cbor.Unmarshal(data, &doc); err != nil {
		return nil, errors.FormatCause(errors.PhaseLoad, "parse assembly binary", err)
	}
	return &doc, nil
}

// MarshalText encodes doc as indented JSON.
func MarshalText(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// MarshalBinary encodes doc as canonical CBOR.
func MarshalBinary(doc *Document) ([]byte, error) {
	return cborEncMode.Marshal(doc)
}

func parseMemberKind(s string) (MemberKind, bool) {
	switch s {
	case "", "method":
		return MemberMethod, true
	case "field":
		return MemberField, true
	case "property":
		return MemberProperty, true
	}
	return 0, false
}
