package routing

// MultiArray is the published form of the adjacency matrix: a flattened
// row-major payload plus a two-dimension layout (rows, columns).
type MultiArray struct {
	Layout Layout  `json:"layout"`
	Data   []int16 `json:"data"`
}

type Layout struct {
	Dim        []Dimension `json:"dim"`
	DataOffset uint32      `json:"data_offset"`
}

type Dimension struct {
	Label  string `json:"label"`
	Size   uint32 `json:"size"`
	Stride uint32 `json:"stride"`
}

func (m Matrix) MultiArray() MultiArray {
	n := uint32(m.N)
	data := make([]int16, len(m.Data))
	for i, v := range m.Data {
		data[i] = int16(v)
	}
	return MultiArray{
		Layout: Layout{
			Dim: []Dimension{
				{Label: "rows", Size: n, Stride: n * n},
				{Label: "columns", Size: n, Stride: n},
			},
		},
		Data: data,
	}
}

// Matrix rebuilds the adjacency matrix from its published form.
func (a MultiArray) Matrix() Matrix {
	n := 0
	if len(a.Layout.Dim) > 0 {
		n = int(a.Layout.Dim[0].Size)
	}
	m := NewMatrix(n)
	for i := 0; i < len(m.Data) && int(a.Layout.DataOffset)+i < len(a.Data); i++ {
		m.Data[i] = int(a.Data[int(a.Layout.DataOffset)+i])
	}
	return m
}
