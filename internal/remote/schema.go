package remote

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

// Validator checks JSON documents against the action schemas.
// A cue.Context is not safe for concurrent use, so calls are serialized.
type Validator struct {
	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
}

// NewValidator compiles the embedded schema.
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile action schema: %w", formatCUEError(err))
	}
	return &Validator{ctx: ctx, schema: schema}, nil
}

// Validate unifies data with the named definition and requires a concrete,
// error-free result. Empty data is treated as JSON null.
func (v *Validator) Validate(def string, data []byte) error {
	if len(data) == 0 {
		data = []byte("null")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	d := v.schema.LookupPath(cue.ParsePath(def))
	if !d.Exists() {
		return fmt.Errorf("schema definition %s not found", def)
	}

	doc := v.ctx.CompileBytes(data, cue.Filename("payload.json"))
	if err := doc.Err(); err != nil {
		return formatCUEError(err)
	}

	if err := d.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// ValidateRequest checks an action's payload.
func (v *Validator) ValidateRequest(a Action, payload []byte) error {
	spec, err := lookup(a)
	if err != nil {
		return err
	}
	if err := v.Validate(spec.request, payload); err != nil {
		return &SchemaError{Action: a, Direction: "request", Err: err}
	}
	return nil
}

// ValidateResponse checks the data field of an action's response.
func (v *Validator) ValidateResponse(a Action, data []byte) error {
	spec, err := lookup(a)
	if err != nil {
		return err
	}
	if err := v.Validate(spec.response, data); err != nil {
		return &SchemaError{Action: a, Direction: "response", Err: err}
	}
	return nil
}

// formatCUEError keeps the first of possibly many CUE errors, with its
// position when one is known.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		pos := positions[0]
		return fmt.Errorf("%s:%d:%d: %s", pos.Filename(), pos.Line(), pos.Column(), first.Error())
	}
	return first
}
