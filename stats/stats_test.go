package stats

import (
	"math"
	"testing"
)

const eps = 1e-9

func near(x, y float64) bool {
	return math.Abs(x-y) < eps
}

func TestEMA(t *testing.T) {
	var e EMA
	if v := e.Add(5, 10); v != 5 {
		t.Error("got", v, "expect", 5)
	}
	e = 10
	if v := e.Add(20, 9); v != 12 {
		t.Error("got", v, "expect", 12)
	}
}

func TestAverage(t *testing.T) {
	var s Average
	for _, x := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		s.Add(x)
	}
	if s.Count != 8 {
		t.Error("count: got", s.Count)
	}
	if !near(s.Mean, 5) {
		t.Error("mean: got", s.Mean, "expect", 5)
	}
	if !near(s.PopStdDev, 2) {
		t.Error("pop stddev: got", s.PopStdDev, "expect", 2)
	}
	if !near(s.StdDev, math.Sqrt(32.0/7.0)) {
		t.Error("stddev: got", s.StdDev, "expect", math.Sqrt(32.0/7.0))
	}
}

func testMatrix() *Confusion {
	c := NewConfusion(3)
	counts := [][]int64{
		{5, 1, 0},
		{1, 8, 1},
		{0, 2, 2},
	}
	for i, row := range counts {
		for j, n := range row {
			for k := int64(0); k < n; k++ {
				c.Add(i, j)
			}
		}
	}
	return c
}

func TestConfusion(t *testing.T) {
	c := testMatrix()
	t.Logf("confusion\n%s", c)
	if c.Total() != 20 {
		t.Error("total: got", c.Total(), "expect", 20)
	}
	if !near(c.Overall(), 0.75) {
		t.Error("overall: got", c.Overall(), "expect", 0.75)
	}
	acc := c.PerClass()
	expect := []float64{5.0 / 6.0, 0.8, 0.5}
	for i := range acc {
		if !near(acc[i], expect[i]) {
			t.Error("per class: got", acc, "expect", expect)
			break
		}
	}
	if !near(c.Average(), (5.0/6.0+0.8+0.5)/3) {
		t.Error("average: got", c.Average())
	}
	if !near(c.Kappa(), 0.355/0.605) {
		t.Error("kappa: got", c.Kappa(), "expect", 0.355/0.605)
	}
}

func TestConfusionMerge(t *testing.T) {
	c := testMatrix()
	c.Merge(testMatrix())
	if c.Total() != 40 {
		t.Error("total: got", c.Total(), "expect", 40)
	}
	if !near(c.Overall(), 0.75) {
		t.Error("overall: got", c.Overall(), "expect", 0.75)
	}
}

func TestConfusionAbsentClass(t *testing.T) {
	c := NewConfusion(3)
	c.Add(0, 0)
	c.Add(0, 0)
	c.Add(1, 0)
	c.Add(1, 1)
	acc := c.PerClass()
	if !math.IsNaN(acc[2]) {
		t.Error("expect NaN for absent class: got", acc[2])
	}
	if !near(c.Average(), 0.75) {
		t.Error("average: got", c.Average(), "expect", 0.75)
	}
}

func TestRunSet(t *testing.T) {
	r := NewRunSet(2)
	c1 := NewConfusion(2)
	for i := 0; i < 8; i++ {
		c1.Add(i%2, i%2)
	}
	c1.Add(0, 1)
	c1.Add(1, 0)
	c2 := NewConfusion(2)
	for i := 0; i < 6; i++ {
		c2.Add(i%2, i%2)
	}
	c2.Add(0, 1)
	c2.Add(0, 1)
	c2.Add(1, 0)
	c2.Add(1, 0)
	r.Add(c1)
	r.Add(c2)
	if r.Runs() != 2 {
		t.Error("runs: got", r.Runs())
	}
	if !near(r.OA.Mean, 0.7) {
		t.Error("mean OA: got", r.OA.Mean, "expect", 0.7)
	}
	if !near(r.OA.PopStdDev, 0.1) {
		t.Error("pop std OA: got", r.OA.PopStdDev, "expect", 0.1)
	}
	t.Logf("summary\n%s", r)
}
