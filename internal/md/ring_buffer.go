package md

import "errors"

var errNotEnoughData = errors.New("not enough data")

// RingBuffer keeps the most recent closes for one pair, oldest first on read.
type RingBuffer struct {
	values []float64
	size   int
	index  int
	filled bool
}

func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 1
	}
	return &RingBuffer{
		values: make([]float64, size),
		size:   size,
	}
}

func (r *RingBuffer) Add(value float64) {
	r.values[r.index] = value
	r.index = (r.index + 1) % r.size
	if r.index == 0 {
		r.filled = true
	}
}

func (r *RingBuffer) AddAll(values ...float64) {
	for _, v := range values {
		r.Add(v)
	}
}

func (r *RingBuffer) Len() int {
	if r.filled {
		return r.size
	}
	return r.index
}

// Last returns the newest value.
func (r *RingBuffer) Last() (float64, bool) {
	if r.Len() == 0 {
		return 0, false
	}
	return r.values[(r.index-1+r.size)%r.size], true
}

func (r *RingBuffer) Values() []float64 {
	length := r.Len()
	result := make([]float64, 0, length)
	if length == 0 {
		return result
	}
	if r.filled {
		result = append(result, r.values[r.index:]...)
	}
	result = append(result, r.values[:r.index]...)
	return result
}

// Tail returns the newest n values, oldest first.
func (r *RingBuffer) Tail(n int) ([]float64, error) {
	values := r.Values()
	if n <= 0 || len(values) < n {
		return nil, errNotEnoughData
	}
	return values[len(values)-n:], nil
}

func (r *RingBuffer) SMA(window int) (float64, error) {
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}
	tail, err := r.Tail(window)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, v := range tail {
		sum += v
	}
	return sum / float64(window), nil
}
