package bytecode

import "github.com/glint-lang/glint/pkg/ast"

// slotTable assigns local slots to binding identities. Slots are
// handed out in strictly increasing order and never reused; a
// shadowing binding is a distinct *ast.NameDef and so gets a fresh
// slot.
type slotTable struct {
	byDef map[*ast.NameDef]int
	next  int
}

func newSlotTable() *slotTable {
	return &slotTable{byDef: make(map[*ast.NameDef]int)}
}

// bind returns the slot for a binding, allocating one on first use.
func (t *slotTable) bind(def *ast.NameDef) int {
	if slot, ok := t.byDef[def]; ok {
		return slot
	}
	slot := t.next
	t.next++
	t.byDef[def] = slot
	return slot
}

// lookup returns the slot for a binding, if one was assigned.
func (t *slotTable) lookup(def *ast.NameDef) (int, bool) {
	slot, ok := t.byDef[def]
	return slot, ok
}

// reserve allocates an anonymous slot (loop iterable and index
// temporaries).
func (t *slotTable) reserve() int {
	slot := t.next
	t.next++
	return slot
}

// count returns the number of slots handed out so far.
func (t *slotTable) count() int { return t.next }
