package game

// Blast is the area one bomb covers on the current board.
type Blast struct {
	Cells  []Position
	Robots []PlayerID
	Blocks []Position
}

// blast rays in walk order: +x, -x, +y, -y
var rays = [...]Direction{Right, Left, Up, Down}

// BlastAt walks the explosion out of center. Each ray covers at most
// ExplosionRadius cells and stops at the board edge or on the first block,
// which is destroyed. A block on center itself absorbs the whole blast.
func (s *Status) BlastAt(p Params, center Position) Blast {
	var b Blast

	who := make(map[Position][]PlayerID, len(s.Positions))
	for _, id := range s.PlayerIDs() {
		if pos, ok := s.Positions[id]; ok {
			who[pos] = append(who[pos], id)
		}
	}

	// visit lights pos and reports whether a block stops the ray there.
	visit := func(pos Position) bool {
		b.Cells = append(b.Cells, pos)
		b.Robots = append(b.Robots, who[pos]...)
		if s.HasBlock(pos) {
			b.Blocks = append(b.Blocks, pos)
			return true
		}
		return false
	}

	if visit(center) {
		return b
	}
	for _, d := range rays {
		pos := center
		for i := uint16(0); i < p.ExplosionRadius; i++ {
			next, ok := p.Step(pos, d)
			if !ok {
				break
			}
			pos = next
			if visit(pos) {
				break
			}
		}
	}
	return b
}
