package window

type Mode int

const (
	Trailing Mode = iota
	Fixed
)

func (m Mode) String() string {
	if m == Fixed {
		return "fixed"
	}
	return "trailing"
}

type ViewOptions struct {
	Size  int
	Start *int // nil selects trailing mode
}

// View is a derived read-only range over a Stream.
//
// A fixed view addresses a slot of the stream's current contents, not a
// record: once the stream is full every Append shifts the values seen at the
// same start by one. Until the stream holds start+size records a fixed view
// falls back to the trailing slice.
type View[T any] struct {
	parent   *Stream[T]
	size     int
	start    int
	mode     Mode
	position int
}

// Snapshot is one materialization of a view.
type Snapshot[T any] struct {
	Mode            string `json:"mode"`
	Size            int    `json:"size"`
	Start           int    `json:"start"`
	CurrentPosition int    `json:"current_position"`
	StreamLen       int    `json:"stream_len"`
	Data            []T    `json:"data"`
}

func NewView[T any](s *Stream[T], opts ViewOptions) (*View[T], error) {
	if s == nil {
		return nil, ErrNilStream
	}
	if opts.Size < 1 {
		return nil, ErrInvalidSize
	}
	v := &View[T]{parent: s, size: opts.Size}
	if opts.Start != nil {
		if *opts.Start < 0 {
			return nil, ErrInvalidStart
		}
		v.mode = Fixed
		v.start = *opts.Start
		// not yet validated against real data
		v.position = v.start - v.size
	}
	return v, nil
}

func (v *View[T]) Mode() Mode { return v.mode }

func (v *View[T]) Size() int { return v.size }

func (v *View[T]) Start() int { return v.start }

// CurrentPosition is the effective start used by the last call to Data.
func (v *View[T]) CurrentPosition() int { return v.position }

// Data recomputes the visible records from the parent stream.
func (v *View[T]) Data() []T {
	n := v.parent.Len()
	if v.mode == Fixed && v.start <= n-v.size {
		v.position = v.start
		return v.parent.Slice(v.start, v.start+v.size)
	}
	v.position = max(0, n-v.size)
	return v.parent.Slice(v.position, n)
}

func (v *View[T]) Snapshot() Snapshot[T] {
	data := v.Data()
	return Snapshot[T]{
		Mode:            v.mode.String(),
		Size:            v.size,
		Start:           v.start,
		CurrentPosition: v.position,
		StreamLen:       v.parent.Len(),
		Data:            data,
	}
}

// SetSize leaves start and mode alone; the next Data call uses the new size.
func (v *View[T]) SetSize(size int) error {
	if size < 1 {
		return ErrInvalidSize
	}
	v.size = size
	return nil
}

// SetStart anchors the view at start, switching a trailing view to fixed mode.
// When start+size would run past the stream's capacity, size is truncated so
// the range ends at the capacity; a start at or beyond capacity leaves size 0.
func (v *View[T]) SetStart(start int) error {
	if start < 0 {
		return ErrInvalidStart
	}
	v.mode = Fixed
	v.start = start
	if limit := v.parent.Cap(); start > limit-v.size {
		v.size = max(0, limit-start)
	}
	return nil
}
