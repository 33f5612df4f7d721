package service

import (
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const emailStripes = 256

// emailLocks serializes work on a given email address.  Addresses are
// hashed onto a fixed array of mutexes, so unrelated emails may share a
// stripe; that only costs throughput, never correctness.
type emailLocks struct {
	stripes [emailStripes]sync.Mutex
}

func stripe(email string) int {
	return int(xxhash.Sum64String(email) % emailStripes)
}

// lock acquires the stripes of every given email and returns a func
// releasing them.  Stripes are taken in ascending index order and each at
// most once, so callers holding several never deadlock each other.
func (l *emailLocks) lock(emails ...string) func() {
	idx := make([]int, 0, len(emails))
	for _, e := range emails {
		idx = append(idx, stripe(e))
	}
	slices.Sort(idx)
	idx = slices.Compact(idx)

	for _, i := range idx {
		l.stripes[i].Lock()
	}
	return func() {
		for j := len(idx) - 1; j >= 0; j-- {
			l.stripes[idx[j]].Unlock()
		}
	}
}
