package listing

// Trigger watches a single anchor, the last rendered item, and reports when
// it enters the viewport. Only one observation is active at a time.
type Trigger struct {
	target   int
	attached bool
	inView   bool
}

// Attach observes the item with the given id. Attaching a different target
// releases the current observation first; attaching the same target again
// keeps it, so a still-visible anchor does not fire twice.
func (t *Trigger) Attach(id int) {
	if t.attached && t.target == id {
		return
	}
	t.Release()
	t.target = id
	t.attached = true
}

// Release drops the active observation, if any.
func (t *Trigger) Release() {
	t.target = 0
	t.attached = false
	t.inView = false
}

// Target returns the observed item id.
func (t *Trigger) Target() (int, bool) {
	return t.target, t.attached
}

// Observe feeds the anchor's current visibility and reports an entry: the
// first visible observation after attaching or after the anchor left view.
func (t *Trigger) Observe(visible bool) bool {
	if !t.attached {
		return false
	}
	entered := visible && !t.inView
	t.inView = visible
	return entered
}
