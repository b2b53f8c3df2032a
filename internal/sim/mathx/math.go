package mathx

// ClampInt returns v limited to [lo, hi]. hi >= lo.
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Hash2 mixes a run seed with two integer coordinates into a well-spread 64-bit value.
func Hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

// StreamSeeds derives the two PCG seed words for an agent. Same (seed, id) always yields the same pair.
func StreamSeeds(seed int64, id int) (uint64, uint64) {
	return Hash2(seed, id, 0), Hash2(seed, id, 1)
}
