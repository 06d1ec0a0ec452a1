// Package permission implements the capability check that gates every
// mutation: a registry assigns each permission code a bit, principals carry a
// bitmask of granted codes, and the Gate tests that every required code is set.
//
// The package is a pure in-memory data structure with no I/O.
package permission

import (
	"errors"
	"sync"
)

// maxBits is the width of Mask.
const maxBits = 64

// Code is a permission code such as "pep_plus.add_sessaopep".
type Code string

// Registry maps permission codes to bit positions within a Mask.
type Registry struct {
	mu        sync.RWMutex
	codeToBit map[Code]int
	bitToCode map[int]Code
	frozen    bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		codeToBit: make(map[Code]int),
		bitToCode: make(map[int]Code),
	}
}

// Register assigns the next available bit to code. Must be called before Freeze.
func (r *Registry) Register(code Code) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, errors.New("registry frozen")
	}
	if code == "" {
		return -1, errors.New("permission code cannot be empty")
	}
	if _, exists := r.codeToBit[code]; exists {
		return -1, errors.New("permission already registered")
	}

	next := len(r.codeToBit)
	if next >= maxBits {
		return -1, errors.New("permission limit exceeded")
	}
	r.codeToBit[code] = next
	r.bitToCode[next] = code
	return next, nil
}

// Bit returns the bit index for code, or false if it is not registered.
func (r *Registry) Bit(code Code) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.codeToBit[code]
	return bit, ok
}

// Code returns the code assigned to bit, or false if unassigned.
func (r *Registry) Code(bit int) (Code, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	code, ok := r.bitToCode[bit]
	return code, ok
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered codes.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.codeToBit)
}

// MaskOf builds a mask from codes. Unregistered codes are ignored so a
// principal granted codes from other modules is not rejected outright.
func (r *Registry) MaskOf(codes []Code) Mask {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var m Mask
	for _, code := range codes {
		if bit, ok := r.codeToBit[code]; ok {
			m.Set(bit)
		}
	}
	return m
}

// Codes expands a mask back into codes in bit order.
func (r *Registry) Codes(m Mask) []Code {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Code
	for bit := 0; bit < maxBits; bit++ {
		if m.Has(bit) {
			if code, ok := r.bitToCode[bit]; ok {
				out = append(out, code)
			}
		}
	}
	return out
}
