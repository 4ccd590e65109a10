package window

import "errors"

// DefaultCapacity is used when StreamOptions.Capacity is left at zero.
const DefaultCapacity = 10

var (
	ErrInvalidCapacity = errors.New("window: capacity must be positive")
	ErrInvalidSize     = errors.New("window: size must be positive")
	ErrInvalidStart    = errors.New("window: start must not be negative")
	ErrNilStream       = errors.New("window: view requires a stream")
)

type ChangeKind int

const (
	Added ChangeKind = iota
	Evicted
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Evicted:
		return "evicted"
	default:
		return "unknown"
	}
}

// Change is handed to observers for every record entering or leaving a stream.
type Change[T any] struct {
	Kind   ChangeKind
	Record T
}

type StreamOptions[T any] struct {
	Capacity int
	Initial  []T
}

// Stream is a fixed-capacity FIFO holding the most recent records, oldest first.
// It does no locking; callers sharing a stream between goroutines must
// serialize Append against reads themselves.
type Stream[T any] struct {
	data      []T
	start     int
	count     int
	total     uint64
	observers []func(Change[T])
}

func NewStream[T any](opts StreamOptions[T]) (*Stream[T], error) {
	capacity := opts.Capacity
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	if capacity < 0 {
		return nil, ErrInvalidCapacity
	}
	s := &Stream[T]{data: make([]T, capacity)}

	// An oversized seed keeps only its newest records, as if appended one by one.
	seed := opts.Initial
	if len(seed) > capacity {
		seed = seed[len(seed)-capacity:]
	}
	s.count = copy(s.data, seed)
	s.total = uint64(len(opts.Initial))
	return s, nil
}

// Observe registers fn to be called synchronously from Append.
func (s *Stream[T]) Observe(fn func(Change[T])) {
	if fn == nil {
		return
	}
	s.observers = append(s.observers, fn)
}

// Append adds rec at the tail, evicting the head first when the stream is full.
func (s *Stream[T]) Append(rec T) {
	size := len(s.data)
	if s.count == size {
		var zero T
		evicted := s.data[s.start]
		s.data[s.start] = zero
		s.start = (s.start + 1) % size
		s.count--
		s.notify(Change[T]{Kind: Evicted, Record: evicted})
	}
	s.data[(s.start+s.count)%size] = rec
	s.count++
	s.total++
	s.notify(Change[T]{Kind: Added, Record: rec})
}

func (s *Stream[T]) notify(c Change[T]) {
	for _, fn := range s.observers {
		fn(c)
	}
}

func (s *Stream[T]) Len() int { return s.count }

func (s *Stream[T]) Cap() int { return len(s.data) }

// Total counts every record ever added, seed included.
func (s *Stream[T]) Total() uint64 { return s.total }

// At returns the record at local position i (0 is the oldest).
func (s *Stream[T]) At(i int) (T, bool) {
	if i < 0 || i >= s.count {
		var zero T
		return zero, false
	}
	return s.data[(s.start+i)%len(s.data)], true
}

// Slice copies positions [lo, hi) out of the stream. Bounds are clamped.
func (s *Stream[T]) Slice(lo, hi int) []T {
	if lo < 0 {
		lo = 0
	}
	if hi > s.count {
		hi = s.count
	}
	if lo >= hi {
		return []T{}
	}
	out := make([]T, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, s.data[(s.start+i)%len(s.data)])
	}
	return out
}

// Contents returns a copy of everything currently held, oldest first.
func (s *Stream[T]) Contents() []T {
	return s.Slice(0, s.count)
}
