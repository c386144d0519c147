package num

import (
	"fmt"
	"strings"
)

// Parameters for array printing
var (
	PrintThreshold = 12
	PrintEdgeitems = 4
)

// Array interface is a general n dimensional tensor similar to a numpy ndarray
// data is stored internally in row major order
type Array interface {
	// Dims returns the shape of the array in rows, cols, ... order
	Dims() []int
	// Size is total number of elements
	Size() int
	// Dtype returns the data type of the elements in the array
	Dtype() DataType
	// Reshape returns a new array of the same size with a view on the same data but with a different shape
	Reshape(dims ...int) Array
	// Float returns the raw data as a float32 slice, panics if dtype is not Float32
	Float() []float32
	// Int returns the raw data as an int32 slice, panics if dtype is not Int32
	Int() []int32
	// Formatted output
	String(q Queue) string
}

// Data type of an element of the array
type DataType int

const (
	Float32 DataType = iota
	Int32
)

func (d DataType) String() string {
	if d == Int32 {
		return "int32"
	}
	return "float32"
}

// Allocate a new array of the given type and shape, initialised to zero.
// An array with no dims is a scalar with a single element.
func (d cpuDevice) NewArray(dtype DataType, dims ...int) Array {
	return newArray(dtype, dims)
}

// Allocate a new array with the same type and shape as a
func (d cpuDevice) NewArrayLike(a Array) Array {
	return newArray(a.Dtype(), a.Dims())
}

type array struct {
	dims  []int
	size  int
	dtype DataType
	fdata []float32
	idata []int32
}

func newArray(dtype DataType, dims []int) *array {
	shape := append([]int{}, dims...)
	a := &array{dims: shape, size: Prod(shape), dtype: dtype}
	if dtype == Int32 {
		a.idata = make([]int32, a.size)
	} else {
		a.fdata = make([]float32, a.size)
	}
	return a
}

func (a *array) Dims() []int { return a.dims }

func (a *array) Size() int { return a.size }

func (a *array) Dtype() DataType { return a.dtype }

func (a *array) Float() []float32 {
	if a.dtype != Float32 {
		panic("Float: dtype is " + a.dtype.String())
	}
	return a.fdata
}

func (a *array) Int() []int32 {
	if a.dtype != Int32 {
		panic("Int: dtype is " + a.dtype.String())
	}
	return a.idata
}

// Reshape to a different set of dims, a single -1 entry is calculated from the total size.
func (a *array) Reshape(dims ...int) Array {
	n := a.size
	for i := range dims {
		if dims[i] == -1 {
			other := 1
			for j, dim := range dims {
				if i != j {
					if dim == -1 {
						panic("Reshape: can only have single -1 value")
					}
					other *= dim
				}
			}
			dims[i] = n / other
		}
	}
	if Prod(dims) != n {
		panic(fmt.Sprintf("Reshape: cannot reshape %v to %v", a.dims, dims))
	}
	return &array{dims: dims, size: n, dtype: a.dtype, fdata: a.fdata, idata: a.idata}
}

func (a *array) String(q Queue) string {
	q.Finish()
	var rows, cols int
	switch len(a.dims) {
	case 0:
		rows, cols = 1, 1
	case 1:
		rows, cols = 1, a.dims[0]
	case 2:
		rows, cols = a.dims[0], a.dims[1]
	default:
		rows, cols = Prod(a.dims[:len(a.dims)-1]), a.dims[len(a.dims)-1]
	}
	var sb strings.Builder
	for r := 0; r < rows; r++ {
		if trimmed(r, rows) {
			if r == PrintEdgeitems {
				sb.WriteString(" ...\n")
			}
			continue
		}
		sb.WriteByte('[')
		for c := 0; c < cols; c++ {
			if trimmed(c, cols) {
				if c == PrintEdgeitems {
					sb.WriteString(" ...")
				}
				continue
			}
			if a.dtype == Int32 {
				sb.WriteString(fmt.Sprintf("%5d", a.idata[r*cols+c]))
			} else {
				sb.WriteString(fmt.Sprintf("%8.4g", a.fdata[r*cols+c]))
			}
		}
		sb.WriteString("]\n")
	}
	return sb.String()
}

func trimmed(i, n int) bool {
	return n > PrintThreshold && i >= PrintEdgeitems && i < n-PrintEdgeitems
}

// Prod returns the product of the dims, i.e. the number of elements implied by the shape.
func Prod(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

// SameShape checks if the two shapes match exactly.
func SameShape(xd, yd []int) bool {
	if len(xd) != len(yd) {
		return false
	}
	for i := range xd {
		if xd[i] != yd[i] {
			return false
		}
	}
	return true
}
