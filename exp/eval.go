package exp

import (
	"github.com/leeguandong/mmhyperspectralcls/hsi"
	"github.com/leeguandong/mmhyperspectralcls/nnet"
	"github.com/leeguandong/mmhyperspectralcls/num"
	"github.com/leeguandong/mmhyperspectralcls/stats"
)

// Evaluate runs the trained network over every sample in the patch set and
// fills a confusion matrix. Unlike the epoch error measure this covers the
// exact sample count: the final chunk is padded by repeating the last patch
// and the padding is excluded from the results. Returns the confusion
// matrix and the zero based predicted class per sample.
func Evaluate(queue num.Queue, conf nnet.Config, net *nnet.Network, p *hsi.Patches) (*stats.Confusion, []int32) {
	n := p.Len()
	chunk := conf.TestBatch
	if chunk < 1 || chunk > n {
		chunk = n
	}
	evalNet := nnet.New(queue, conf, chunk, p.Shape(), nil)
	net.CopyTo(evalNet)
	nfeat := num.Prod(p.Shape())
	var x num.Array
	if conf.FlattenInput {
		x = queue.NewArray(num.Float32, chunk, nfeat)
	} else {
		x = queue.NewArray(num.Float32, append([]int{chunk}, p.Shape()...)...)
	}
	classes := queue.NewArray(num.Int32, chunk)
	buf := make([]float32, chunk*nfeat)
	labels := make([]int32, chunk)
	predBuf := make([]int32, chunk)
	idx := make([]int, chunk)
	cm := stats.NewConfusion(len(p.Classes()))
	preds := make([]int32, n)
	for start := 0; start < n; start += chunk {
		count := chunk
		if start+count > n {
			count = n - start
		}
		for i := range idx {
			if i < count {
				idx[i] = start + i
			} else {
				idx[i] = n - 1
			}
		}
		p.Input(idx, buf)
		p.Label(idx, labels)
		queue.Call(num.Write(x, buf))
		evalNet.Predict(x, classes)
		queue.Call(num.Read(classes, predBuf)).Finish()
		cm.AddBatch(labels[:count], predBuf[:count])
		copy(preds[start:start+count], predBuf[:count])
	}
	return cm, preds
}
