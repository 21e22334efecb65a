package mna

import "math"

// Simplify implements the iterative row-reduction pass of spec §4.3. It
// must run after the one-shot linear stamp and before the first
// Factorize. Rows already marked LSChanges or RSChanges (by
// StampNonLinear / StampVoltageSourceNoValue / StampRightSideChanging)
// are never touched, preserving the invariant that a later nonlinear
// doStep can always re-stamp them (spec §9 Open Question 3, tested by
// property 8).
//
// Simplify does not shrink the matrix. Instead, each fold rewrites its
// own row into a canonical unit-diagonal equation pinning the folded
// variable directly — the same diagonal=1/row-zeroed/b=value
// substitution the teacher's FE assembly uses to impose an essential
// (Dirichlet) boundary condition without reindexing the system. This
// keeps Factorize's pivot search safe (no row is left entirely zero)
// while leaving the matrix shape stable across a topology generation.
func (s *System) Simplify() {
	for {
		changed := false
		for r := 0; r < s.Size; r++ {
			if s.Rows[r].LSChanges || s.Rows[r].RSChanges {
				continue
			}
			if s.Rows[r].Kind != RowNormal {
				continue
			}
			nz := s.nonZeroCols(r)
			switch len(nz) {
			case 1:
				col := nz[0]
				coef := s.A[r][col]
				if coef == 0 {
					continue
				}
				value := s.B[r] / coef
				s.foldConst(r, col, value)
				changed = true
			case 2:
				c0, c1 := nz[0], nz[1]
				a0, a1 := s.A[r][c0], s.A[r][c1]
				if s.B[r] != 0 {
					continue
				}
				if math.Abs(math.Abs(a0)-math.Abs(a1)) > 1e-12*math.Max(math.Abs(a0), math.Abs(a1)) {
					continue
				}
				sign := 1.0
				if (a0 < 0) == (a1 < 0) {
					sign = -1.0
				}
				s.foldEqual(r, c1, c0, sign)
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

// nonZeroCols returns the indices of non-zero, non-already-folded columns
// in row r.
func (s *System) nonZeroCols(r int) []int {
	var cols []int
	for c := 0; c < s.Size; c++ {
		if s.Rows[c].Kind != RowNormal {
			continue
		}
		if s.A[r][c] != 0 {
			cols = append(cols, c)
			if len(cols) > 2 {
				return cols
			}
		}
	}
	return cols
}

// foldConst marks variable col as a known constant, folds it out of
// every other row's right-hand side, then rewrites row itself into the
// pinning equation x[col] = value (diagonal 1, every other entry in the
// row zero — they already are, since row had exactly one nonzero
// column) so the full matrix stays nonsingular at that row/column pair.
func (s *System) foldConst(row, col int, value float64) {
	s.Rows[col] = RowInfo{Kind: RowConst, Value: value}
	for r := 0; r < s.Size; r++ {
		if r == row {
			continue
		}
		if a := s.A[r][col]; a != 0 {
			s.B[r] -= a * value
			s.A[r][col] = 0
		}
	}
	s.A[row][col] = 1
	s.B[row] = value
}

// foldEqual marks variable col as equal to (sign)*variable mappedCol,
// contracts it out of every other row in favor of mappedCol, then
// rewrites row itself into the pinning equation
// x[col] - sign*x[mappedCol] = 0, replacing its original two stamped
// coefficients so neither column is left without a defining row.
func (s *System) foldEqual(row, col, mappedCol int, sign float64) {
	s.Rows[col] = RowInfo{Kind: RowEqual, MappedCol: mappedCol, EqualSign: sign}
	for r := 0; r < s.Size; r++ {
		if r == row {
			continue
		}
		if a := s.A[r][col]; a != 0 {
			s.A[r][mappedCol] += a * sign
			s.A[r][col] = 0
		}
	}
	s.A[row][col] = 1
	s.A[row][mappedCol] = -sign
	s.B[row] = 0
}

// ResolvedValue returns the solution for variable i, accounting for any
// RowConst/RowEqual folding performed by Simplify — callers should read
// node voltages and voltage-source currents through this rather than s.X
// directly whenever Simplify has run.
func (s *System) ResolvedValue(i int) float64 {
	switch s.Rows[i].Kind {
	case RowConst:
		return s.Rows[i].Value
	case RowEqual:
		return s.Rows[i].EqualSign * s.ResolvedValue(s.Rows[i].MappedCol)
	default:
		return s.X[i]
	}
}
