// Package num contains numeric Array processing routines such as optimised matrix multiplication.
// Arrays are always dense row major and functions are queued for batched execution.
package num

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

const lossEpsilon = 1e-7

// TransType flag indicates if matrix is transposed
type TransType int

const (
	NoTrans TransType = iota
	Trans
)

func (t TransType) trans() blas.Transpose {
	if t == Trans {
		return blas.Trans
	}
	return blas.NoTrans
}

// Read data from array into a slice.
func Read(a Array, data interface{}) Function {
	n := a.Size()
	switch dst := data.(type) {
	case []float32:
		src := a.Float()
		checkLen("Read", n, len(dst))
		return fn("copy", func() { copy(dst, src) })
	case []int32:
		src := a.Int()
		checkLen("Read", n, len(dst))
		return fn("copy", func() { copy(dst, src) })
	default:
		panic(fmt.Sprintf("Read: invalid data type %T", data))
	}
}

// Write data from a slice into the given array.
func Write(a Array, data interface{}) Function {
	n := a.Size()
	switch src := data.(type) {
	case []float32:
		dst := a.Float()
		checkLen("Write", n, len(src))
		return fn("copy", func() { copy(dst, src) })
	case []int32:
		dst := a.Int()
		checkLen("Write", n, len(src))
		return fn("copy", func() { copy(dst, src) })
	default:
		panic(fmt.Sprintf("Write: invalid data type %T", data))
	}
}

// Write to one row in the array
func WriteRow(a Array, row int, data []float32) Function {
	dims := a.Dims()
	if len(dims) != 2 {
		panic("WriteRow: must be a matrix")
	}
	if row < 0 || row >= dims[0] {
		panic("WriteRow: row out of range")
	}
	cols := dims[1]
	checkLen("WriteRow", cols, len(data))
	dst := a.Float()
	return fn("copy_row", func() { copy(dst[row*cols:(row+1)*cols], data) })
}

// Write to one column in the array
func WriteCol(a Array, col int, data []float32) Function {
	dims := a.Dims()
	if len(dims) != 2 {
		panic("WriteCol: must be a matrix")
	}
	rows, cols := dims[0], dims[1]
	if col < 0 || col >= cols {
		panic("WriteCol: column out of range")
	}
	checkLen("WriteCol", rows, len(data))
	dst := a.Float()
	return fn("copy_col", func() {
		for r := 0; r < rows; r++ {
			dst[r*cols+col] = data[r]
		}
	})
}

// Fill array with a scalar value
func Fill(a Array, scalar float32) Function {
	if a.Dtype() == Int32 {
		dst := a.Int()
		val := int32(scalar)
		return fn("fill", func() {
			for i := range dst {
				dst[i] = val
			}
		})
	}
	dst := a.Float()
	return fn("fill", func() {
		for i := range dst {
			dst[i] = scalar
		}
	})
}

// Copy from src to dst, if src is a vector and dst a matrix then the vector is
// tiled over the rows, if src is a single column it is tiled over the columns.
func Copy(dst, src Array) Function {
	if src.Dtype() != dst.Dtype() {
		panic("Copy: arguments must be same type")
	}
	ddim, sdim := dst.Dims(), src.Dims()
	if SameShape(ddim, sdim) {
		if dst.Dtype() == Int32 {
			d, s := dst.Int(), src.Int()
			return fn("copy", func() { copy(d, s) })
		}
		d, s := dst.Float(), src.Float()
		return fn("copy", func() { copy(d, s) })
	}
	if len(sdim) == 1 && len(ddim) == 2 && sdim[0] == ddim[1] {
		d, s := dst.Float(), src.Float()
		rows, cols := ddim[0], ddim[1]
		return fn("tile", func() {
			for r := 0; r < rows; r++ {
				copy(d[r*cols:(r+1)*cols], s)
			}
		})
	}
	if len(sdim) == 2 && len(ddim) == 2 && sdim[0] == ddim[0] && sdim[1] == 1 {
		d, s := dst.Float(), src.Float()
		rows, cols := ddim[0], ddim[1]
		return fn("tile", func() {
			for r := 0; r < rows; r++ {
				for c := 0; c < cols; c++ {
					d[r*cols+c] = s[r]
				}
			}
		})
	}
	panic(fmt.Sprintf("Copy: cannot copy from %v to %v shape", sdim, ddim))
}

// Element wise != comparison
func Neq(x, y, res Array) Function {
	if x.Dtype() != Int32 || y.Dtype() != Int32 || res.Dtype() != Int32 {
		panic("Neq: incorrect datatype")
	}
	if !SameShape(x.Dims(), res.Dims()) || !SameShape(y.Dims(), res.Dims()) {
		panic("Neq: arrays must be same shape")
	}
	xs, ys, rs := x.Int(), y.Int(), res.Int()
	return fn("neq", func() {
		for i := range rs {
			if xs[i] != ys[i] {
				rs[i] = 1
			} else {
				rs[i] = 0
			}
		}
	})
}

// Convert to one hot representation
func Onehot(x, y Array, classes int) Function {
	if x.Dtype() != Int32 || y.Dtype() != Float32 {
		panic("Onehot: incorrect datatype")
	}
	xdim, ydim := x.Dims(), y.Dims()
	if len(xdim) != 1 || len(ydim) != 2 || xdim[0] != ydim[0] || ydim[1] != classes {
		panic("Onehot: invalid array shape")
	}
	labels, out := x.Int(), y.Float()
	return fn("onehot", func() {
		for i := range out {
			out[i] = 0
		}
		for i, label := range labels {
			out[i*classes+int(label)] = 1
		}
	})
}

// Convert from OneHot format back to labels, takes the argmax over each row
func Unhot(x, y Array) Function {
	if x.Dtype() != Float32 || y.Dtype() != Int32 {
		panic("Unhot: incorrect datatype")
	}
	xdim, ydim := x.Dims(), y.Dims()
	if len(xdim) != 2 || len(ydim) != 1 || xdim[0] != ydim[0] {
		panic("Unhot: invalid array shape")
	}
	in, labels := x.Float(), y.Int()
	classes := xdim[1]
	return fn("unhot", func() {
		for i := range labels {
			row := in[i*classes : (i+1)*classes]
			max, imax := row[0], 0
			for j, v := range row[1:] {
				if v > max {
					max, imax = v, j+1
				}
			}
			labels[i] = int32(imax)
		}
	})
}

// Scale array: x <- alpha*x
func Scale(alpha float32, x Array) Function {
	v := vec(x)
	return fn("scale", func() { blas32.Scal(alpha, v) })
}

// Array addition and scaling: y <- alpha*x + y
func Axpy(alpha float32, x, y Array) Function {
	if !SameShape(x.Dims(), y.Dims()) {
		panic("Axpy: arrays must be same shape")
	}
	xv, yv := vec(x), vec(y)
	return fn("axpy", func() { blas32.Axpy(alpha, xv, yv) })
}

// Element wise multiply: res <- x * y
func Mul(x, y, res Array) Function {
	if x.Dtype() != Float32 || y.Dtype() != Float32 || res.Dtype() != Float32 {
		panic("Mul: dtype must be Float32")
	}
	if !SameShape(x.Dims(), res.Dims()) || !SameShape(y.Dims(), res.Dims()) {
		panic("Mul: arrays must be same shape")
	}
	xs, ys, rs := x.Float(), y.Float(), res.Float()
	return fn("mul", func() {
		for i := range rs {
			rs[i] = xs[i] * ys[i]
		}
	})
}

// Transpose sets mB to a copy of mA with the data transposed.
func Transpose(mA, mB Array) Function {
	adim, bdim := mA.Dims(), mB.Dims()
	if len(adim) != 2 || len(bdim) != 2 {
		panic("Transpose: arrays must be 2D")
	}
	if adim[0] != bdim[1] || adim[1] != bdim[0] {
		panic("Transpose: destination matrix is wrong shape")
	}
	rows, cols := adim[0], adim[1]
	src, dst := mA.Float(), mB.Float()
	return fn("trans", func() {
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				dst[c*rows+r] = src[r*cols+c]
			}
		}
	})
}

// Calculate the scalar sum of the values in the array: total = scale*sum(a)
func Sum(a, total Array, scale float32) Function {
	if len(total.Dims()) != 0 || total.Dtype() != Float32 {
		panic("Sum: result should be float32 scalar")
	}
	res := total.Float()
	if a.Dtype() == Int32 {
		src := a.Int()
		return fn("sum", func() {
			var sum int32
			for _, v := range src {
				sum += v
			}
			res[0] = scale * float32(sum)
		})
	}
	src := a.Float()
	return fn("sum", func() {
		var sum float32
		for _, v := range src {
			sum += v
		}
		res[0] = scale * sum
	})
}

// Matrix vector multiplication: y <- alpha*dot(mA,x) + beta*y
func Gemv(alpha, beta float32, mA, x, y Array, aTrans TransType) Function {
	adim, xdim, ydim := mA.Dims(), x.Dims(), y.Dims()
	if len(adim) != 2 || len(xdim) != 1 || len(ydim) != 1 {
		panic("Gemv: must have matrix and vector inputs")
	}
	m, n := adim[0], adim[1]
	if aTrans == Trans {
		if xdim[0] != m || ydim[0] != n {
			panic("Gemv: incorrect vector size")
		}
	} else {
		if xdim[0] != n || ydim[0] != m {
			panic("Gemv: incorrect vector size")
		}
	}
	a := gen(mA, "Gemv")
	xv, yv := vec(x), vec(y)
	t := aTrans.trans()
	return fn("gemv", func() { blas32.Gemv(t, alpha, a, xv, beta, yv) })
}

// Matrix matrix multiplication: mC <- alpha*dot(mA, mB) + beta*mC
func Gemm(alpha, beta float32, mA, mB, mC Array, aTrans, bTrans TransType) Function {
	adim, bdim, cdim := mA.Dims(), mB.Dims(), mC.Dims()
	if len(adim) != 2 || len(bdim) != 2 || len(cdim) != 2 {
		panic("Gemm: must have 2 dimensional arrays")
	}
	m, k := adim[0], adim[1]
	k2, n := bdim[0], bdim[1]
	if aTrans == Trans {
		m, k = k, m
	}
	if bTrans == Trans {
		k2, n = n, k2
	}
	if k2 != k {
		panic(fmt.Sprintf("Gemm: invalid input shape %v x %v", adim, bdim))
	}
	if cdim[0] != m || cdim[1] != n {
		panic(fmt.Sprintf("Gemm: invalid output shape %v expecting [%d %d]", cdim, m, n))
	}
	a, b, c := gen(mA, "Gemm"), gen(mB, "Gemm"), gen(mC, "Gemm")
	tA, tB := aTrans.trans(), bTrans.trans()
	return fn("gemm", func() { blas32.Gemm(tA, tB, alpha, a, b, beta, c) })
}

// Sigmoid activation function: y = 1/(1+e**(-x))
func Sigmoid(x, y Array) Function {
	return unaryFunc("sigmoid", x, y, func(v float32) float32 {
		return float32(1 / (1 + math.Exp(-float64(v))))
	})
}

// Sigmoid gradient: y = grad * sigmoid(x) * (1-sigmoid(x))
func SigmoidD(x, grad, y Array) Function {
	return binaryFunc("sigmoid_d", x, grad, y, func(v, g float32) float32 {
		s := float32(1 / (1 + math.Exp(-float64(v))))
		return g * s * (1 - s)
	})
}

// Tanh activation function: y = tanh(x)
func Tanh(x, y Array) Function {
	return unaryFunc("tanh", x, y, func(v float32) float32 {
		return float32(math.Tanh(float64(v)))
	})
}

// Tanh gradient: y = grad * (1 - tanh(x)**2)
func TanhD(x, grad, y Array) Function {
	return binaryFunc("tanh_d", x, grad, y, func(v, g float32) float32 {
		t := float32(math.Tanh(float64(v)))
		return g * (1 - t*t)
	})
}

// Relu rectified linear activation function: y = max(x, 0)
func Relu(x, y Array) Function {
	return unaryFunc("relu", x, y, func(v float32) float32 {
		if v > 0 {
			return v
		}
		return 0
	})
}

// Relu gradient: y = grad if x > 0 else 0
func ReluD(x, grad, y Array) Function {
	return binaryFunc("relu_d", x, grad, y, func(v, g float32) float32 {
		if v > 0 {
			return g
		}
		return 0
	})
}

// Quadratic loss function: res = (x-y)**2
func QuadraticLoss(x, y, res Array) Function {
	return binaryFunc("quad_loss", x, y, res, func(a, b float32) float32 {
		return (a - b) * (a - b)
	})
}

// Softmax activation function, applied independently to each row
func Softmax(x, res Array) Function {
	xdim, rdim := x.Dims(), res.Dims()
	if len(xdim) != 2 || !SameShape(xdim, rdim) {
		panic("Softmax: arrays must be 2d and same shape")
	}
	rows, cols := xdim[0], xdim[1]
	in, out := x.Float(), res.Float()
	return fnt("softmax", func(threads int) {
		parFor(threads, rows, func(lo, hi int) {
			for r := lo; r < hi; r++ {
				xrow, orow := in[r*cols:(r+1)*cols], out[r*cols:(r+1)*cols]
				max := xrow[0]
				for _, v := range xrow[1:] {
					if v > max {
						max = v
					}
				}
				var sum float32
				for i, v := range xrow {
					orow[i] = float32(math.Exp(float64(v - max)))
					sum += orow[i]
				}
				for i := range orow {
					orow[i] /= sum
				}
			}
		})
	})
}

// Softmax cross entropy loss: res = -x * log(y)
func SoftmaxLoss(x, y, res Array) Function {
	return binaryFunc("softmax_loss", x, y, res, func(a, b float32) float32 {
		if a == 0 {
			return 0
		}
		return -a * float32(math.Log(float64(b)+lossEpsilon))
	})
}

func unaryFunc(name string, x, y Array, apply func(float32) float32) Function {
	if !SameShape(x.Dims(), y.Dims()) {
		panic(name + ": arrays must be same shape")
	}
	in, out := x.Float(), y.Float()
	return fnt(name, func(threads int) {
		parFor(threads, len(in), func(lo, hi int) {
			for i := lo; i < hi; i++ {
				out[i] = apply(in[i])
			}
		})
	})
}

func binaryFunc(name string, x, y, z Array, apply func(a, b float32) float32) Function {
	if !SameShape(x.Dims(), z.Dims()) || !SameShape(y.Dims(), z.Dims()) {
		panic(name + ": arrays must be same shape")
	}
	xs, ys, zs := x.Float(), y.Float(), z.Float()
	return fnt(name, func(threads int) {
		parFor(threads, len(zs), func(lo, hi int) {
			for i := lo; i < hi; i++ {
				zs[i] = apply(xs[i], ys[i])
			}
		})
	})
}

func vec(a Array) blas32.Vector {
	return blas32.Vector{N: a.Size(), Inc: 1, Data: a.Float()}
}

func gen(a Array, caller string) blas32.General {
	dims := a.Dims()
	if len(dims) != 2 {
		panic(caller + ": array must be 2D")
	}
	return blas32.General{Rows: dims[0], Cols: dims[1], Stride: dims[1], Data: a.Float()}
}

func checkLen(caller string, size, n int) {
	if size != n {
		panic(fmt.Sprintf("%s: buffer length %d does not match array size %d", caller, n, size))
	}
}
