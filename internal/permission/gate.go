package permission

// Principal is the acting user of a mutation.
type Principal interface {
	// AuditID is the identifier stamped on the rows the principal writes.
	AuditID() string
	// Granted lists the capability codes held by the principal.
	Granted() []Code
}

// User is the concrete principal used by the transports.
type User struct {
	ID    string
	Codes []Code
	mask  Mask
	reg   *Registry
}

// NewUser builds a principal with its codes pre-resolved against reg.
func NewUser(reg *Registry, id string, codes ...Code) *User {
	u := &User{ID: id, Codes: append([]Code(nil), codes...), reg: reg}
	if reg != nil {
		u.mask = reg.MaskOf(codes)
	}
	return u
}

// AuditID implements Principal.
func (u *User) AuditID() string { return u.ID }

// Granted implements Principal.
func (u *User) Granted() []Code { return append([]Code(nil), u.Codes...) }

// Mask returns the pre-resolved capability mask.
func (u *User) Mask() Mask { return u.mask }

// Gate checks principals against required codes.
type Gate struct {
	reg *Registry
}

// NewGate returns a gate resolving codes through reg. A nil reg uses DefaultRegistry.
func NewGate(reg *Registry) *Gate {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Gate{reg: reg}
}

// Registry exposes the registry the gate resolves codes through.
func (g *Gate) Registry() *Registry { return g.reg }

// Authorize reports whether p holds every code in required. A nil principal,
// an empty requirement, or any unregistered required code is a denial.
func (g *Gate) Authorize(p Principal, required ...Code) bool {
	if p == nil || len(required) == 0 {
		return false
	}
	var need Mask
	for _, code := range required {
		bit, ok := g.reg.Bit(code)
		if !ok {
			return false
		}
		need.Set(bit)
	}
	return g.maskOf(p).Contains(need)
}

func (g *Gate) maskOf(p Principal) Mask {
	if u, ok := p.(*User); ok && u.reg == g.reg {
		return u.mask
	}
	return g.reg.MaskOf(p.Granted())
}
