package stagecraft

// IDFactory mints ids that are unique to one participant. Every factory in a
// game shares the same spacing but holds a distinct offset, so clients can
// create tokens locally (for speculative execution) without ever colliding
// with ids minted elsewhere. An actor takes its own id from the offset.
type IDFactory struct {
	offset   uint64
	spacing  uint64
	assigned uint64
}

// NewIDFactory builds a factory that yields offset, offset+spacing,
// offset+2*spacing, ...
func NewIDFactory(offset, spacing uint64) *IDFactory {
	if spacing == 0 {
		spacing = 1
	}
	return &IDFactory{offset: offset, spacing: spacing}
}

// Actor returns the participant id associated with this factory.
func (f *IDFactory) Actor() uint64 {
	return f.offset
}

// Spacing returns the stride between ids minted by this factory.
func (f *IDFactory) Spacing() uint64 {
	return f.spacing
}

// Next mints the next token id owned by this participant.
func (f *IDFactory) Next() uint64 {
	id := f.assigned*f.spacing + f.offset
	f.assigned++
	return id
}

// Owns reports whether the given id could have been minted by this factory.
func (f *IDFactory) Owns(id uint64) bool {
	return id%f.spacing == f.offset%f.spacing
}
