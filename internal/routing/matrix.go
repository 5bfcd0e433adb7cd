package routing

import "strings"

// Matrix is a dense N×N 0/1 adjacency matrix over the backbone nodes,
// stored row-major. It is not necessarily symmetric.
type Matrix struct {
	N    int   `json:"n"`
	Data []int `json:"data"`
}

func NewMatrix(n int) Matrix {
	if n < 0 {
		n = 0
	}
	return Matrix{N: n, Data: make([]int, n*n)}
}

// BuildAdjacency sets m[i][j] = 1 iff j appears in t[i], for i, j in [0, n).
// Rows missing from t stay zero; destinations outside [0, n) are ignored.
func BuildAdjacency(t Table, n int) Matrix {
	m := NewMatrix(n)
	for i := 0; i < m.N && i < len(t); i++ {
		for _, j := range t[i] {
			if j >= 0 && j < m.N {
				m.Data[i*m.N+j] = 1
			}
		}
	}
	return m
}

func (m Matrix) At(i, j int) int {
	return m.Data[i*m.N+j]
}

// Rows returns a copy of the matrix as nested slices.
func (m Matrix) Rows() [][]int {
	rows := make([][]int, m.N)
	for i := range rows {
		rows[i] = append([]int(nil), m.Data[i*m.N:(i+1)*m.N]...)
	}
	return rows
}

// Edges counts the set cells.
func (m Matrix) Edges() int {
	n := 0
	for _, v := range m.Data {
		n += v
	}
	return n
}

func (m Matrix) Symmetric() bool {
	for i := 0; i < m.N; i++ {
		for j := i + 1; j < m.N; j++ {
			if m.At(i, j) != m.At(j, i) {
				return false
			}
		}
	}
	return true
}

func (m Matrix) Equal(o Matrix) bool {
	if m.N != o.N || len(m.Data) != len(o.Data) {
		return false
	}
	for i := range m.Data {
		if m.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}

func (m Matrix) String() string {
	var sb strings.Builder
	for i := 0; i < m.N; i++ {
		for j := 0; j < m.N; j++ {
			if j > 0 {
				sb.WriteByte(' ')
			}
			if m.At(i, j) == 1 {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('0')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
