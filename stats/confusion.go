package stats

import (
	"fmt"
	"math"
	"strings"
)

// Confusion holds a square matrix of actual vs predicted label counts
// where entry [actual][predicted] is the number of samples so classified.
type Confusion struct {
	Classes int
	Counts  []int64
}

func NewConfusion(classes int) *Confusion {
	if classes < 1 {
		panic("Confusion: must have at least one class")
	}
	return &Confusion{Classes: classes, Counts: make([]int64, classes*classes)}
}

// Add a single prediction to the matrix
func (c *Confusion) Add(actual, predicted int) {
	if actual < 0 || actual >= c.Classes || predicted < 0 || predicted >= c.Classes {
		panic(fmt.Sprintf("Confusion: label out of range: actual=%d predicted=%d classes=%d",
			actual, predicted, c.Classes))
	}
	c.Counts[actual*c.Classes+predicted]++
}

// AddBatch adds a batch of predictions, slices must be the same length
func (c *Confusion) AddBatch(actual, predicted []int32) {
	if len(actual) != len(predicted) {
		panic("Confusion: batch length mismatch")
	}
	for i := range actual {
		c.Add(int(actual[i]), int(predicted[i]))
	}
}

// Count returns the matrix entry for one actual, predicted label pair
func (c *Confusion) Count(actual, predicted int) int64 {
	return c.Counts[actual*c.Classes+predicted]
}

// Merge accumulates the counts from m
func (c *Confusion) Merge(m *Confusion) {
	if m.Classes != c.Classes {
		panic("Confusion: cannot merge different number of classes")
	}
	for i, n := range m.Counts {
		c.Counts[i] += n
	}
}

// Total number of samples added
func (c *Confusion) Total() int64 {
	var sum int64
	for _, n := range c.Counts {
		sum += n
	}
	return sum
}

// Overall classification accuracy, i.e. the fraction of correct predictions
func (c *Confusion) Overall() float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	var correct int64
	for i := 0; i < c.Classes; i++ {
		correct += c.Count(i, i)
	}
	return float64(correct) / float64(total)
}

// PerClass returns the recall for each class, entries are NaN if the
// class has no samples.
func (c *Confusion) PerClass() []float64 {
	acc := make([]float64, c.Classes)
	for i := range acc {
		var row int64
		for j := 0; j < c.Classes; j++ {
			row += c.Count(i, j)
		}
		if row == 0 {
			acc[i] = math.NaN()
		} else {
			acc[i] = float64(c.Count(i, i)) / float64(row)
		}
	}
	return acc
}

// Average accuracy is the mean of the per class recall, skipping classes
// with no samples.
func (c *Confusion) Average() float64 {
	sum, n := 0.0, 0
	for _, acc := range c.PerClass() {
		if !math.IsNaN(acc) {
			sum += acc
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Kappa is Cohen's kappa coefficient, the accuracy corrected for agreement by chance.
func (c *Confusion) Kappa() float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	var chance float64
	for i := 0; i < c.Classes; i++ {
		var row, col int64
		for j := 0; j < c.Classes; j++ {
			row += c.Count(i, j)
			col += c.Count(j, i)
		}
		chance += float64(row) * float64(col)
	}
	pe := chance / (float64(total) * float64(total))
	if pe == 1 {
		return 0
	}
	return (c.Overall() - pe) / (1 - pe)
}

func (c *Confusion) String() string {
	var sb strings.Builder
	for i := 0; i < c.Classes; i++ {
		sb.WriteByte('[')
		for j := 0; j < c.Classes; j++ {
			sb.WriteString(fmt.Sprintf("%6d", c.Count(i, j)))
		}
		sb.WriteString("]\n")
	}
	return sb.String()
}
