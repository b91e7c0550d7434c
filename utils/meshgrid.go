// Package utils contains numeric helpers shared by the image and geometry packages.
package utils

import "gonum.org/v1/gonum/mat"

// Arange returns n evenly spaced values 0, 1, ..., n-1.
func Arange(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

// Multiple2D generates an n-dimensional grid using a specified set of locations in each
// dimension. Row i of the result holds the coordinates of grid point i, with the last dimension
// varying fastest.
func Multiple2D(x [][]float64) *mat.Dense {
	dim := len(x)
	dims := make([]int, dim)
	for i := range x {
		dims[i] = len(x[i])
	}
	sz := size(dims)
	sub := make([]int, dim)
	matOut := mat.NewDense(sz, dim, nil)
	for i := 0; i < sz; i++ {
		SubFor(sub, i, dims)
		for j := 0; j < dim; j++ {
			matOut.Set(i, j, x[j][sub[j]])
		}
	}
	return matOut
}

// PixelGrid returns the 3 x (width*height) homogeneous pixel coordinates (u, v, 1) in row-major
// pixel order.
func PixelGrid(width, height int) *mat.Dense {
	vu := Multiple2D([][]float64{Arange(height), Arange(width)})
	n := width * height
	grid := mat.NewDense(3, n, nil)
	for i := 0; i < n; i++ {
		grid.Set(0, i, vu.At(i, 1))
		grid.Set(1, i, vu.At(i, 0))
		grid.Set(2, i, 1)
	}
	return grid
}

func size(dims []int) int {
	n := 1
	for _, v := range dims {
		n *= v
	}
	return n
}

// SubFor constructs the multi-dimensional subscript for the input linear index.
// Dims specifies the maximum size in each dimension.
//
// If sub is non-nil the result is stored in-place into sub. If it is nil a new
// slice of the appropriate length is allocated.
func SubFor(sub []int, idx int, dims []int) []int {
	for _, v := range dims {
		if v <= 0 {
			panic("bad dims")
		}
	}
	if sub == nil {
		sub = make([]int, len(dims))
	}
	if len(sub) != len(dims) {
		panic("size mismatch")
	}
	if idx < 0 {
		panic("bad index")
	}
	stride := 1
	for i := len(dims) - 1; i >= 1; i-- {
		stride *= dims[i]
	}
	for i := 0; i < len(dims)-1; i++ {
		v := idx / stride
		if v >= dims[i] {
			panic("bad index")
		}
		sub[i] = v
		idx -= v * stride
		stride /= dims[i+1]
	}
	if idx >= dims[len(sub)-1] {
		panic("bad index")
	}
	sub[len(sub)-1] = idx
	return sub
}
