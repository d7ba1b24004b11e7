// Package schema validates device-local records against CUE definitions.
//
// Each persisted element is compiled as a CUE value (JSON is valid CUE) and
// unified with its definition; an element is valid only if the unification is
// concrete and error-free.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed records.cue
var recordsCUE string

// Definition names in records.cue.
const (
	CartLine   = "#CartLine"
	FavoriteID = "#FavoriteID"
)

// Validator checks raw JSON elements against one definition.
//
// cue.Context is not safe for concurrent use, so Validate serialises calls.
type Validator struct {
	mu   sync.Mutex
	ctx  *cue.Context
	def  cue.Value
	name string
}

// New compiles records.cue and looks up the named definition.
func New(definition string) (*Validator, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(recordsCUE, cue.Filename("records.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile record schemas: %w", err)
	}

	def := root.LookupPath(cue.ParsePath(definition))
	if !def.Exists() {
		return nil, fmt.Errorf("schema definition %s not found", definition)
	}
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("schema definition %s: %w", definition, err)
	}

	return &Validator{ctx: ctx, def: def, name: definition}, nil
}

// MustNew is like New but panics on error. The embedded schemas are static,
// so an error here is a build defect.
func MustNew(definition string) *Validator {
	v, err := New(definition)
	if err != nil {
		panic(err)
	}
	return v
}

// Name returns the definition this validator checks.
func (v *Validator) Name() string {
	return v.name
}

// Validate reports whether raw satisfies the definition.
func (v *Validator) Validate(raw json.RawMessage) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	val := v.ctx.CompileBytes(raw, cue.Filename("element.json"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("%s: parse element: %w", v.name, err)
	}

	unified := v.def.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%s: %w", v.name, err)
	}
	return nil
}
