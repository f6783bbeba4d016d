package chainhash

// TargetFromBits returns the 32-byte difficulty target for the given bit
// count: the top `bits` bits are cleared to zero, the rest set to 0xFF.
// `bits` is interpreted as the number of required leading zero bits, not
// the compact-target encoding Bitcoin itself moved to — that migration is
// out of scope here.
func TargetFromBits(bits uint32) ChainHash {
	var target ChainHash
	for i := range target {
		target[i] = 0xFF
	}

	fullBytes := bits / 8
	remBits := bits % 8

	if fullBytes >= HashSize {
		return ChainHash{}
	}

	for i := uint32(0); i < fullBytes; i++ {
		target[i] = 0x00
	}
	if remBits > 0 {
		target[fullBytes] = 0xFF >> remBits
	}

	return target
}
