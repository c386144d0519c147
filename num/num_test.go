package num

import (
	"math"
	"math/rand"
	"reflect"
	"testing"
)

const eps = 1e-6

var dev = NewCPUDevice()

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func compareFloats(t *testing.T, got, expect []float32) {
	if len(got) != len(expect) {
		t.Fatal("length mismatch!")
	}
	for i := range got {
		if abs(got[i]-expect[i]) > eps {
			t.Error("got", got, "expect", expect)
			return
		}
	}
}

func TestArray(t *testing.T) {
	xd := []float32{1, 1, 2, 2, 3, 3}
	q := dev.NewQueue(1)
	x := dev.NewArray(Float32, 6)
	if typ := x.Dtype(); typ != Float32 {
		t.Error("dtype invalid: got", typ)
	}
	x = x.Reshape(2, 3)
	if dim := x.Dims(); !reflect.DeepEqual(dim, []int{2, 3}) {
		t.Error("dims invalid: got", dim)
	}
	res := make([]float32, 6)
	q.Call(
		Write(x, xd),
		Read(x, res),
	).Finish()
	if !reflect.DeepEqual(res, xd) {
		t.Error("got", res, "expect", xd)
	}
	expect := []float32{9, 8, 7, 6, 5, 4}
	q.Call(
		Fill(x, 0),
		WriteCol(x, 0, []float32{9, 6}),
		WriteCol(x, 1, []float32{8, 5}),
		WriteCol(x, 2, []float32{7, 4}),
		Read(x, res),
	).Finish()
	if !reflect.DeepEqual(res, expect) {
		t.Error("got", res, "expect", expect)
	}
	q.Call(
		Fill(x, 0),
		WriteRow(x, 0, []float32{9, 8, 7}),
		WriteRow(x, 1, []float32{6, 5, 4}),
		Read(x, res),
	).Finish()
	if !reflect.DeepEqual(res, expect) {
		t.Error("got", res, "expect", expect)
	}
}

func TestReshape(t *testing.T) {
	x := dev.NewArray(Float32, 4, 6)
	y := x.Reshape(8, -1)
	if dim := y.Dims(); !reflect.DeepEqual(dim, []int{8, 3}) {
		t.Error("dims invalid: got", dim)
	}
	if y.Size() != 24 {
		t.Error("size invalid: got", y.Size())
	}
}

func TestCopy(t *testing.T) {
	q := dev.NewQueue(1)
	x := dev.NewArray(Float32, 2, 3)
	res := make([]float32, 6)
	// tile rows
	y := dev.NewArray(Float32, 3)
	q.Call(
		Write(y, []float32{3, 2, 1}),
		Copy(x, y),
		Read(x, res),
	).Finish()
	expect := []float32{3, 2, 1, 3, 2, 1}
	if !reflect.DeepEqual(res, expect) {
		t.Error("got", res, "expect", expect)
	}
	// tile columns
	y = dev.NewArray(Float32, 2, 1)
	q.Call(
		Write(y, []float32{1, 2}),
		Copy(x, y),
		Read(x, res),
	).Finish()
	expect = []float32{1, 1, 1, 2, 2, 2}
	if !reflect.DeepEqual(res, expect) {
		t.Error("got", res, "expect", expect)
	}
}

func TestOnehot(t *testing.T) {
	q := dev.NewQueue(1)
	y := dev.NewArray(Int32, 4)
	y1h := dev.NewArray(Float32, 4, 3)
	res := make([]float32, 12)
	vec := []int32{2, 1, 0, 2}
	q.Call(
		Write(y, vec),
		Onehot(y, y1h, 3),
		Read(y1h, res),
	).Finish()
	t.Logf("y1hot %s\n%s", y.String(q), y1h.String(q))
	expect := []float32{0, 0, 1, 0, 1, 0, 1, 0, 0, 0, 0, 1}
	if !reflect.DeepEqual(res, expect) {
		t.Error("got", res, "expect", expect)
	}
	res2 := make([]int32, 4)
	q.Call(
		Unhot(y1h, y),
		Read(y, res2),
	).Finish()
	if !reflect.DeepEqual(res2, vec) {
		t.Error("got", res2, "expect", vec)
	}
}

func TestNeq(t *testing.T) {
	q := dev.NewQueue(1)
	x := dev.NewArray(Int32, 5)
	y := dev.NewArray(Int32, 5)
	z := dev.NewArray(Int32, 5)
	res := make([]int32, 5)
	q.Call(
		Write(x, []int32{1, 2, 3, 4, 5}),
		Write(y, []int32{1, 0, 3, 0, 5}),
		Neq(x, y, z),
		Read(z, res),
	).Finish()
	expect := []int32{0, 1, 0, 1, 0}
	if !reflect.DeepEqual(res, expect) {
		t.Error("got", res, "expect", expect)
	}
}

func TestTranspose(t *testing.T) {
	q := dev.NewQueue(1)
	x := dev.NewArray(Float32, 2, 3)
	y := dev.NewArray(Float32, 3, 2)
	res1 := make([]float32, 6)
	q.Call(
		Write(x, []float32{1, 2, 3, 4, 5, 6}),
		Transpose(x, y),
		Read(y, res1),
	).Finish()
	t.Logf("x\n%v", x.String(q))
	t.Logf("y\n%v", y.String(q))
	xT := []float32{1, 4, 2, 5, 3, 6}
	if !reflect.DeepEqual(res1, xT) {
		t.Error("got", res1, "expect", xT)
	}
}

func TestAxpy(t *testing.T) {
	q := dev.NewQueue(1)
	x := dev.NewArray(Float32, 2, 3)
	y := dev.NewArray(Float32, 2, 3)
	res := make([]float32, 6)
	q.Call(
		Write(x, []float32{1, 1, 2, 2, 3, 3}),
		Write(y, []float32{0.5, 0.5, 0.5, 0.5, 0.5, 0.5}),
		Axpy(2, x, y),
		Read(y, res),
	).Finish()
	expect := []float32{2.5, 2.5, 4.5, 4.5, 6.5, 6.5}
	if !reflect.DeepEqual(res, expect) {
		t.Error("got", res, "expect", expect)
	}
}

func TestScale(t *testing.T) {
	q := dev.NewQueue(1)
	x := dev.NewArray(Float32, 4)
	y := dev.NewArray(Float32, 4)
	z := dev.NewArray(Float32, 4)
	res := make([]float32, 4)
	q.Call(
		Write(x, []float32{1, 2, 3, 4}),
		Scale(0.5, x),
		Read(x, res),
	).Finish()
	expect := []float32{0.5, 1, 1.5, 2}
	if !reflect.DeepEqual(res, expect) {
		t.Error("got", res, "expect", expect)
	}
	q.Call(
		Write(y, []float32{2, 2, 0, 2}),
		Mul(x, y, z),
		Read(z, res),
	).Finish()
	expect = []float32{1, 2, 0, 4}
	if !reflect.DeepEqual(res, expect) {
		t.Error("got", res, "expect", expect)
	}
}

func TestSum(t *testing.T) {
	q := dev.NewQueue(1)
	x := dev.NewArray(Float32, 2, 3)
	sum := dev.NewArray(Float32)
	res := make([]float32, 1)
	// scalar mean
	q.Call(
		Write(x, []float32{1, 2, 3, 4, 5, 6}),
		Sum(x, sum, 1.0/6.0),
		Read(sum, res),
	).Finish()
	if res[0] != 3.5 {
		t.Error("got", res[0], "expect", 3.5)
	}
	// sum for each column
	csum := dev.NewArray(Float32, 3)
	res = make([]float32, 3)
	ones := dev.NewArray(Float32, 2)
	q.Call(
		Fill(ones, 1),
		Gemv(1, 0, x, ones, csum, Trans),
		Read(csum, res),
	).Finish()
	expect := []float32{5, 7, 9}
	if !reflect.DeepEqual(res, expect) {
		t.Error("got", res, "expect", expect)
	}
}

func TestGemv(t *testing.T) {
	q := dev.NewQueue(1)
	a := dev.NewArray(Float32, 2, 3)
	x := dev.NewArray(Float32, 3)
	y := dev.NewArray(Float32, 2)
	res := make([]float32, 2)
	q.Call(
		Write(a, []float32{1, 2, 3, 4, 5, 6}),
		Write(x, []float32{1, 1, 1}),
		Gemv(1, 0, a, x, y, NoTrans),
		Read(y, res),
	).Finish()
	expect := []float32{6, 15}
	if !reflect.DeepEqual(res, expect) {
		t.Error("got", res, "expect", expect)
	}
}

func TestGemm(t *testing.T) {
	q := dev.NewQueue(1)
	x := dev.NewArray(Float32, 2, 3)
	y := dev.NewArray(Float32, 3, 2)
	z := dev.NewArray(Float32, 2, 2)
	q.Call(Write(x, []float32{1, 2, 3, 4, 5, 6}))
	res := make([]float32, 4)
	for _, trans := range []TransType{NoTrans, Trans} {
		if trans == Trans {
			y = y.Reshape(2, 3)
			q.Call(Write(y, []float32{7, 9, 11, 8, 10, 12}))
		} else {
			q.Call(Write(y, []float32{7, 8, 9, 10, 11, 12}))
		}
		q.Call(
			Gemm(1, 0, x, y, z, NoTrans, trans),
			Read(z, res),
		).Finish()
		expect := []float32{58, 64, 139, 154}
		if !reflect.DeepEqual(res, expect) {
			t.Error("got", res, "expect", expect)
		}
	}
}

func TestActivation(t *testing.T) {
	q := dev.NewQueue(1)
	x := dev.NewArray(Float32, 4)
	y := dev.NewArray(Float32, 4)
	res := make([]float32, 4)
	q.Call(
		Write(x, []float32{-2, -0.5, 0, 3}),
		Relu(x, y),
		Read(y, res),
	).Finish()
	compareFloats(t, res, []float32{0, 0, 0, 3})
	q.Call(
		Sigmoid(x, y),
		Read(y, res),
	).Finish()
	compareFloats(t, res, []float32{0.1192029, 0.3775407, 0.5, 0.9525741})
	q.Call(
		Tanh(x, y),
		Read(y, res),
	).Finish()
	compareFloats(t, res, []float32{-0.9640276, -0.4621172, 0, 0.9950548})
	grad := dev.NewArray(Float32, 4)
	q.Call(
		Fill(grad, 1),
		ReluD(x, grad, y),
		Read(y, res),
	).Finish()
	compareFloats(t, res, []float32{0, 0, 0, 1})
}

func TestSoftmax(t *testing.T) {
	q := dev.NewQueue(1)
	x := dev.NewArray(Float32, 2, 3)
	y := dev.NewArray(Float32, 2, 3)
	res := make([]float32, 6)
	ln2 := float32(math.Log(2))
	q.Call(
		Write(x, []float32{0, 0, 0, ln2, 0, 0}),
		Softmax(x, y),
		Read(y, res),
	).Finish()
	third := float32(1.0 / 3.0)
	compareFloats(t, res, []float32{third, third, third, 0.5, 0.25, 0.25})
}

func TestSoftmaxLoss(t *testing.T) {
	q := dev.NewQueue(1)
	y1h := dev.NewArray(Float32, 1, 2)
	out := dev.NewArray(Float32, 1, 2)
	loss := dev.NewArray(Float32, 1, 2)
	total := dev.NewArray(Float32)
	res := make([]float32, 1)
	q.Call(
		Write(y1h, []float32{0, 1}),
		Write(out, []float32{0.5, 0.5}),
		SoftmaxLoss(y1h, out, loss),
		Sum(loss, total, 1),
		Read(total, res),
	).Finish()
	expect := -float32(math.Log(0.5 + lossEpsilon))
	if abs(res[0]-expect) > eps {
		t.Error("got", res[0], "expect", expect)
	}
}

func randSlice(n int) []float32 {
	res := make([]float32, n)
	for i := range res {
		res[i] = float32(rand.Intn(20))
	}
	return res
}

func BenchmarkGemm(b *testing.B) {
	size := 100
	q := dev.NewQueue(4)
	x := dev.NewArray(Float32, size, size)
	y := dev.NewArray(Float32, size, size)
	z := dev.NewArray(Float32, size, size)
	q.Call(
		Write(x, randSlice(size*size)),
		Write(y, randSlice(size*size)),
	).Finish()
	for i := 0; i < b.N; i++ {
		q.Call(Gemm(1, 0, x, y, z, NoTrans, NoTrans)).Finish()
	}
}
