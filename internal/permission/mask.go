package permission

// Mask is a 64-bit capability set.
type Mask uint64

// Has reports whether bit is set.
func (m Mask) Has(bit int) bool {
	if bit < 0 || bit >= maxBits {
		return false
	}
	return m&(1<<bit) != 0
}

// Set turns bit on.
func (m *Mask) Set(bit int) {
	if bit < 0 || bit >= maxBits {
		return
	}
	*m |= 1 << bit
}

// Clear turns bit off.
func (m *Mask) Clear(bit int) {
	if bit < 0 || bit >= maxBits {
		return
	}
	*m &^= 1 << bit
}

// Contains reports whether every bit of other is also set in m.
func (m Mask) Contains(other Mask) bool {
	return m&other == other
}
