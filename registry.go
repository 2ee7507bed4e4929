package ggcalc

import (
	"fmt"

	"github.com/gogpu/ggcalc/internal/bytecode"
)

// MaxExpressions is the number of registry slots, tombstones included. It
// matches the capacity of the jump table and styles uniforms.
const MaxExpressions = bytecode.JumpTableCapacity

// Registry is an ordered arena of expressions.
//
// Ids are slot indices assigned in insertion order and never reused. Remove
// leaves a tombstone: the slot keeps its id, compiles to no source case and
// the sentinel bytecode pair, and is invisible. Compact drops tombstones
// and renumbers the live expressions; it is the only operation that
// changes ids.
//
// Registry is not safe for concurrent use.
type Registry struct {
	slots    []slot
	live     int
	onChange func()
}

type slot struct {
	expr Expression
	dead bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// OnChange installs fn to be called after every mutation. NewRenderer
// installs the renderer's NotifyContentChanged here.
func (r *Registry) OnChange(fn func()) {
	r.onChange = fn
}

func (r *Registry) changed() {
	if r.onChange != nil {
		r.onChange()
	}
}

// Add appends e and returns its id.
func (r *Registry) Add(e Expression) (int, error) {
	if len(r.slots) >= MaxExpressions {
		return 0, fmt.Errorf("%d slots: %w", len(r.slots), ErrRegistryFull)
	}
	e = e.clone()
	e.ID = len(r.slots)
	r.slots = append(r.slots, slot{expr: e})
	r.live++
	r.changed()
	return e.ID, nil
}

// Update replaces the content of expression id. The id is kept.
func (r *Registry) Update(id int, e Expression) error {
	if !r.alive(id) {
		return fmt.Errorf("id %d: %w", id, ErrUnknownExpression)
	}
	e = e.clone()
	e.ID = id
	r.slots[id].expr = e
	r.changed()
	return nil
}

// SetVisible toggles the visibility of expression id.
func (r *Registry) SetVisible(id int, visible bool) error {
	if !r.alive(id) {
		return fmt.Errorf("id %d: %w", id, ErrUnknownExpression)
	}
	r.slots[id].expr.Visible = visible
	r.changed()
	return nil
}

// Remove turns expression id into a tombstone.
func (r *Registry) Remove(id int) error {
	if !r.alive(id) {
		return fmt.Errorf("id %d: %w", id, ErrUnknownExpression)
	}
	r.slots[id] = slot{expr: Expression{ID: id}, dead: true}
	r.live--
	r.changed()
	return nil
}

// Compact drops tombstones and renumbers the remaining expressions in
// order. It returns the new id of every surviving old id.
func (r *Registry) Compact() map[int]int {
	remap := make(map[int]int, r.live)
	if r.live == len(r.slots) {
		for i := range r.slots {
			remap[i] = i
		}
		return remap
	}

	kept := r.slots[:0]
	for i, s := range r.slots {
		if s.dead {
			continue
		}
		s.expr.ID = len(kept)
		remap[i] = s.expr.ID
		kept = append(kept, s)
	}
	clear(r.slots[len(kept):])
	r.slots = kept
	r.changed()
	return remap
}

// Get returns expression id.
func (r *Registry) Get(id int) (Expression, bool) {
	if !r.alive(id) {
		return Expression{}, false
	}
	return r.slots[id].expr.clone(), true
}

// Len returns the number of slots, tombstones included. It equals the
// length of the jump table built from a snapshot.
func (r *Registry) Len() int {
	return len(r.slots)
}

// Live returns the number of expressions that are not tombstones.
func (r *Registry) Live() int {
	return r.live
}

// Snapshot returns every slot in id order. Tombstones appear as empty,
// invisible expressions. The result shares no memory with the registry.
func (r *Registry) Snapshot() []Expression {
	out := make([]Expression, len(r.slots))
	for i, s := range r.slots {
		out[i] = s.expr.clone()
	}
	return out
}

func (r *Registry) alive(id int) bool {
	return id >= 0 && id < len(r.slots) && !r.slots[id].dead
}
