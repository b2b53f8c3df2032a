package trail

import "math"

// Bucket is a decay class for a trail cell; higher buckets are older.
type Bucket int

const (
	Fresh Bucket = iota
	Recent
	Warm
	Fading
	Cool
	Cold
	Stale
)

type bucketSpec struct {
	minAge uint64
	maxAge uint64
	name   string
	color  string // ANSI 16-colour index
}

var buckets = [...]bucketSpec{
	Fresh:  {0, 5, "red", "1"},
	Recent: {6, 10, "light-red", "9"},
	Warm:   {11, 15, "light-yellow", "11"},
	Fading: {16, 25, "white", "15"},
	Cool:   {26, 35, "light-cyan", "14"},
	Cold:   {36, 50, "light-blue", "12"},
	Stale:  {51, math.MaxUint64, "blue", "4"},
}

// BucketFor maps an age in ticks to its decay bucket. It is monotonic: a larger age never
// yields a lower bucket.
func BucketFor(age uint64) Bucket {
	for b, spec := range buckets {
		if age <= spec.maxAge {
			return Bucket(b)
		}
	}
	return Stale
}

// Buckets lists every bucket from youngest to oldest.
func Buckets() []Bucket {
	out := make([]Bucket, len(buckets))
	for i := range buckets {
		out[i] = Bucket(i)
	}
	return out
}

func (b Bucket) valid() bool { return b >= Fresh && b <= Stale }

func (b Bucket) String() string {
	if !b.valid() {
		return "unknown"
	}
	return buckets[b].name
}

// Color is the ANSI colour index used to draw cells in this bucket.
func (b Bucket) Color() string {
	if !b.valid() {
		return buckets[Stale].color
	}
	return buckets[b].color
}

// Range returns the inclusive age bounds; the last bucket is open-ended (max is math.MaxUint64).
func (b Bucket) Range() (minAge, maxAge uint64) {
	if !b.valid() {
		return 0, 0
	}
	return buckets[b].minAge, buckets[b].maxAge
}
