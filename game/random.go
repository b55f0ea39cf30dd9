package game

const (
	randomMultiplier = 48271
	randomModulus    = 2147483647
)

// Random is the minimal-standard Lehmer generator. The same seed yields the
// same sequence everywhere.
type Random struct {
	state uint32
}

func NewRandom(seed uint32) *Random {
	return &Random{state: seed}
}

// Next advances the generator and returns the new state.
func (r *Random) Next() uint32 {
	r.state = uint32(uint64(r.state) * randomMultiplier % randomModulus)
	return r.state
}

// Intn returns the next value reduced modulo n.
func (r *Random) Intn(n uint16) uint16 {
	return uint16(r.Next() % uint32(n))
}

// ValidSeed reports whether seed produces a non-degenerate sequence.
func ValidSeed(seed uint32) bool {
	return seed%randomModulus != 0
}
