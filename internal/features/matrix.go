package features

import "sort"

// Vector is a sparse row. Indices are strictly increasing.
type Vector struct {
	Indices []int
	Values  []float64
}

func newVector(values map[int]float64) Vector {
	indices := make([]int, 0, len(values))
	for idx := range values {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	v := Vector{Indices: indices, Values: make([]float64, len(indices))}
	for i, idx := range indices {
		v.Values[i] = values[idx]
	}
	return v
}

// Dense expands the vector to width columns.
func (v Vector) Dense(width int) []float64 {
	out := make([]float64, width)
	for i, idx := range v.Indices {
		if idx < width {
			out[idx] = v.Values[i]
		}
	}
	return out
}

// Matrix is a batch of sparse rows sharing one column space.
type Matrix struct {
	Cols int
	Rows []Vector
}

// appendBlock concatenates v after the first offset columns of row.
func appendBlock(row *Vector, v Vector, offset int) {
	for i, idx := range v.Indices {
		row.Indices = append(row.Indices, idx+offset)
		row.Values = append(row.Values, v.Values[i])
	}
}
