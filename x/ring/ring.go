// Package ring provides the fixed-capacity byte ring shared between an
// interrupt handler (producer) and normal context (consumer).
//
// Indices live in [0,Size) and advance modulo Size. One slot is always left
// unused so that put == get means empty and (put-get) mod Size == Size-1
// means full. Each index is a single 32-bit word stored atomically, so a
// reader never observes a torn index.
package ring

import "sync/atomic"

// Size is the ring capacity C. Usable capacity is Size-1.
const Size = 80

// Ring is a single-producer, single-consumer byte ring with statically
// allocated storage. The zero value is an empty ring.
type Ring struct {
	buf [Size]byte
	put atomic.Uint32 // producer index
	get atomic.Uint32 // consumer index
}

func next(i uint32) uint32 {
	i++
	if i >= Size {
		return 0
	}
	return i
}

func occupancy(put, get uint32) int {
	return int((put + Size - get) % Size)
}

// Len reports the number of unread bytes.
func (r *Ring) Len() int { return occupancy(r.put.Load(), r.get.Load()) }

func (r *Ring) Empty() bool { return r.put.Load() == r.get.Load() }

// Put stores b at the put index. When the ring is full the oldest unread
// byte is discarded first and dropped is true. Put never blocks.
func (r *Ring) Put(b byte) (dropped bool) {
	put := r.put.Load()
	nput := next(put)
	if get := r.get.Load(); nput == get {
		r.get.Store(next(get))
		dropped = true
	}
	r.buf[put] = b
	r.put.Store(nput) // publish after the slot is written
	return dropped
}

// Get removes and returns the byte at the get index. ok is false when the
// ring is empty.
func (r *Ring) Get() (b byte, ok bool) {
	get := r.get.Load()
	if get == r.put.Load() {
		return 0, false
	}
	b = r.buf[get]
	r.get.Store(next(get))
	return b, true
}

// ReadInto drains up to len(dst) bytes in FIFO order.
func (r *Ring) ReadInto(dst []byte) (n int) {
	for n < len(dst) {
		b, ok := r.Get()
		if !ok {
			break
		}
		dst[n] = b
		n++
	}
	return n
}

// Reset zeroes the storage and both indices.
func (r *Ring) Reset() {
	r.buf = [Size]byte{}
	r.put.Store(0)
	r.get.Store(0)
}

// Indices returns the raw put and get positions.
func (r *Ring) Indices() (put, get uint32) {
	return r.put.Load(), r.get.Load()
}
