package storable

// ============================================================
// Object Table
// ============================================================

// slot is one entry of the object table.
type slot struct {
	v        *Value
	reserved bool // Held for a reference whose referent is still decoding
}

// objectTable numbers objects in order of first appearance so later records
// can point back at them. It lives for a single decode call.
//
// A reference record reserves its slot before the referent is read. The slot
// takes the identity of the next object added, which is the referent, so a
// self-reference made through the reference slot resolves to the referent
// itself. If the slot is read before any object is added, a placeholder is
// handed out and filled in place once the reference completes.
type objectTable struct {
	slots   []slot
	pending []int // Reserved slots not yet tied to an object
}

// Len returns the number of slots, reserved or filled.
func (t *objectTable) Len() int {
	return len(t.slots)
}

// Add appends a new object and returns its index. Pending reservations take
// the object's identity.
func (t *objectTable) Add(v *Value) int {
	for _, i := range t.pending {
		if t.slots[i].v == nil {
			t.slots[i] = slot{v: v}
		}
		// A slot with a placeholder stays reserved; Fill copies into it.
	}
	t.pending = t.pending[:0]

	t.slots = append(t.slots, slot{v: v})
	return len(t.slots) - 1
}

// Reserve appends an empty slot for a reference and returns its index.
func (t *objectTable) Reserve() int {
	i := len(t.slots)
	t.slots = append(t.slots, slot{reserved: true})
	t.pending = append(t.pending, i)
	return i
}

// Fill completes the reservation at i with the referent v. It is a no-op
// when the slot already took the referent's identity.
func (t *objectTable) Fill(i int, v *Value) {
	s := &t.slots[i]
	if !s.reserved {
		return
	}

	switch {
	case s.v == nil:
		s.v = v
	case s.v != v:
		// Placeholder already shared: make it an alias of the referent.
		*s.v = *v
	}
	s.reserved = false

	for j, p := range t.pending {
		if p == i {
			t.pending = append(t.pending[:j], t.pending[j+1:]...)
			break
		}
	}
}

// Get returns the object at index i. A reserved slot yields a placeholder
// that Fill completes later.
func (t *objectTable) Get(i int64) (*Value, error) {
	if i < 0 || i >= int64(len(t.slots)) {
		return nil, ErrBadBackReference
	}
	s := &t.slots[i]
	if s.v == nil {
		s.v = &Value{kind: KindUndef}
	}
	return s.v, nil
}

// ============================================================
// Class Table
// ============================================================

// classTable holds class names in order of first appearance so later records
// can name a class by index.
type classTable struct {
	names []string
}

// Add appends a class name and returns its index.
func (c *classTable) Add(name string) int {
	c.names = append(c.names, name)
	return len(c.names) - 1
}

// Get returns the class name at index i.
func (c *classTable) Get(i int64) (string, error) {
	if i < 0 || i >= int64(len(c.names)) {
		return "", ErrBadClassIndex
	}
	return c.names[i], nil
}

// Len returns the number of class names.
func (c *classTable) Len() int {
	return len(c.names)
}
