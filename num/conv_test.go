package num

import (
	"reflect"
	"testing"
)

func TestIm2col(t *testing.T) {
	q := dev.NewQueue(1)
	src := dev.NewArray(Float32, 1, 4)
	col := dev.NewArray(Float32, 4, 3)
	res := make([]float32, 12)
	q.Call(
		Write(src, []float32{1, 2, 3, 4}),
		Im2col(src, col, 1, 4, 3, 1, 1),
		Read(col, res),
	).Finish()
	t.Logf("col\n%s", col.String(q))
	expect := []float32{0, 1, 2, 1, 2, 3, 2, 3, 4, 3, 4, 0}
	if !reflect.DeepEqual(res, expect) {
		t.Error("got", res, "expect", expect)
	}
	// each input position accumulates one value per window which covers it
	grad := dev.NewArray(Float32, 1, 4)
	res = make([]float32, 4)
	q.Call(
		Fill(col, 1),
		Col2im(col, grad, 1, 4, 3, 1, 1),
		Read(grad, res),
	).Finish()
	expect = []float32{2, 3, 3, 2}
	if !reflect.DeepEqual(res, expect) {
		t.Error("got", res, "expect", expect)
	}
}

func TestConvFprop(t *testing.T) {
	q := dev.NewQueue(1)
	src := dev.NewArray(Float32, 1, 4)
	col := dev.NewArray(Float32, 4, 3)
	w := dev.NewArray(Float32, 3, 1)
	prod := dev.NewArray(Float32, 4, 1)
	dst := dev.NewArray(Float32, 1, 4)
	res := make([]float32, 4)
	q.Call(
		Write(src, []float32{1, 2, 3, 4}),
		Write(w, []float32{1, 1, 1}),
		Im2col(src, col, 1, 4, 3, 1, 1),
		Gemm(1, 0, col, w, prod, NoTrans, NoTrans),
		ColsToFeat(prod, dst, 1, 4),
		Read(dst, res),
	).Finish()
	expect := []float32{3, 6, 9, 7}
	if !reflect.DeepEqual(res, expect) {
		t.Error("got", res, "expect", expect)
	}
}

func TestColsToFeat(t *testing.T) {
	q := dev.NewQueue(1)
	col := dev.NewArray(Float32, 2, 3)
	feat := dev.NewArray(Float32, 1, 6)
	res := make([]float32, 6)
	q.Call(
		Write(col, []float32{1, 2, 3, 4, 5, 6}),
		ColsToFeat(col, feat, 3, 2),
		Read(feat, res),
	).Finish()
	expect := []float32{1, 4, 2, 5, 3, 6}
	if !reflect.DeepEqual(res, expect) {
		t.Error("got", res, "expect", expect)
	}
	back := dev.NewArray(Float32, 2, 3)
	res = make([]float32, 6)
	q.Call(
		FeatToCols(feat, back, 3, 2),
		Read(back, res),
	).Finish()
	expect = []float32{1, 2, 3, 4, 5, 6}
	if !reflect.DeepEqual(res, expect) {
		t.Error("got", res, "expect", expect)
	}
}

func TestMaxPool(t *testing.T) {
	q := dev.NewQueue(1)
	src := dev.NewArray(Float32, 1, 8)
	dst := dev.NewArray(Float32, 1, 4)
	argmax := dev.NewArray(Int32, 1, 4)
	res := make([]float32, 4)
	q.Call(
		Write(src, []float32{1, 3, 2, 0, 5, 4, 7, 8}),
		MaxPool(src, dst, argmax, 2, 4, 2, 2),
		Read(dst, res),
	).Finish()
	expect := []float32{3, 2, 5, 8}
	if !reflect.DeepEqual(res, expect) {
		t.Error("got", res, "expect", expect)
	}
	ix := make([]int32, 4)
	q.Call(Read(argmax, ix)).Finish()
	if !reflect.DeepEqual(ix, []int32{1, 2, 4, 7}) {
		t.Error("got", ix)
	}
	grad := dev.NewArray(Float32, 1, 4)
	dsrc := dev.NewArray(Float32, 1, 8)
	res = make([]float32, 8)
	q.Call(
		Fill(grad, 1),
		MaxPoolGrad(grad, dsrc, argmax, 2, 4, 2, 2),
		Read(dsrc, res),
	).Finish()
	expect = []float32{0, 1, 1, 0, 1, 0, 0, 1}
	if !reflect.DeepEqual(res, expect) {
		t.Error("got", res, "expect", expect)
	}
}
