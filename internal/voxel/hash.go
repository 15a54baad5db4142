package voxel

// hash32 is a murmur-style finalizer; stable across versions.
func hash32(x uint32) uint32 {
	x ^= x >> 16
	x *= 0x7feb352d
	x ^= x >> 15
	x *= 0x846ca68b
	x ^= x >> 16
	return x
}

func hash2(seed uint32, x, z int32) uint32 {
	h := seed
	h ^= uint32(x) * 0x9e3779b1
	h ^= uint32(z) * 0x85ebca6b
	return hash32(h)
}

// unit maps a hash to [0, 1).
func unit(h uint32) float64 {
	return float64(h) / (1 << 32)
}
