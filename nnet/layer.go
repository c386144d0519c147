package nnet

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/leeguandong/mmhyperspectralcls/num"
)

// Layer interface type represents one layer of the neural net.
type Layer interface {
	Init(q num.Queue, inShape []int, prev Layer) Layer
	OutShape(inShape []int) []int
	Fprop(in num.Array) num.Array
	Bprop(grad num.Array) num.Array
	ToString() string
}

// ParamLayer is a layer with weight and bias parameters
type ParamLayer interface {
	Layer
	InitParams(scale, bias float32, normal bool, rng *rand.Rand)
	Params() (W, B num.Array)
	ParamGrads() (dW, dB num.Array)
	SetParams(W, B num.Array)
	UpdateParams(learningRate, weightDecay, momentum float32)
}

// OutputLayer is the final layer in the stack
type OutputLayer interface {
	Layer
	Loss(yOneHot, yPred num.Array) num.Array
}

// Layer configuration details
type LayerConfig struct {
	Type string
	Data json.RawMessage
}

type ConfigLayer interface {
	Marshal() LayerConfig
}

// Unmarshal JSON data and construct new layer
func (l LayerConfig) Unmarshal() Layer {
	switch l.Type {
	case "conv":
		cfg := new(Conv)
		return cfg.unmarshal(l.Data)
	case "maxPool":
		cfg := new(MaxPool)
		return cfg.unmarshal(l.Data)
	case "linear":
		cfg := new(Linear)
		return cfg.unmarshal(l.Data)
	case "activation":
		cfg := new(Activation)
		return cfg.unmarshal(l.Data)
	case "dropout":
		cfg := new(Dropout)
		return cfg.unmarshal(l.Data)
	case "logRegression":
		return &logRegression{}
	case "flatten":
		return &flatten{}
	default:
		panic("invalid layer type: " + l.Type)
	}
}

func (l LayerConfig) String() string {
	return l.Unmarshal().ToString()
}

// Convolutional layer over the spectral dimension, implements ParamLayer interface.
type Conv struct {
	Nfeats, Size, Stride, Pad int
}

func (c Conv) Marshal() LayerConfig {
	if c.Stride == 0 {
		c.Stride = 1
	}
	return LayerConfig{Type: "conv", Data: marshal(c)}
}

func (c Conv) ToString() string {
	return fmt.Sprintf("conv %+v", c)
}

func (c *Conv) unmarshal(data json.RawMessage) Layer {
	unmarshal(data, c)
	return &conv{Conv: *c}
}

// Max pooling layer, should follow conv layer.
type MaxPool struct {
	Size, Stride int
}

func (c MaxPool) Marshal() LayerConfig {
	if c.Stride == 0 {
		c.Stride = c.Size
	}
	return LayerConfig{Type: "maxPool", Data: marshal(c)}
}

func (c MaxPool) ToString() string {
	return fmt.Sprintf("maxPool %+v", c)
}

func (c *MaxPool) unmarshal(data json.RawMessage) Layer {
	unmarshal(data, c)
	return &maxPool{MaxPool: *c}
}

// Linear fully connected layer, implements ParamLayer interface.
type Linear struct {
	Nout int
}

func (c Linear) Marshal() LayerConfig {
	return LayerConfig{Type: "linear", Data: marshal(c)}
}

func (c Linear) ToString() string {
	return fmt.Sprintf("linear %+v", c)
}

func (c *Linear) unmarshal(data json.RawMessage) Layer {
	unmarshal(data, c)
	return &linear{Linear: *c}
}

// Sigmoid, tanh or relu activation layer, implements OutputLayer interface.
type Activation struct {
	Atype string
}

func (c Activation) Marshal() LayerConfig {
	return LayerConfig{Type: "activation", Data: marshal(c)}
}

func (c Activation) ToString() string {
	return fmt.Sprintf("activation %+v", c)
}

func (c *Activation) unmarshal(data json.RawMessage) Layer {
	unmarshal(data, c)
	layer := &activation{Activation: *c}
	switch c.Atype {
	case "sigmoid":
		layer.activ = num.Sigmoid
		layer.deriv = num.SigmoidD
	case "tanh":
		layer.activ = num.Tanh
		layer.deriv = num.TanhD
	case "relu":
		layer.activ = num.Relu
		layer.deriv = num.ReluD
	default:
		panic(fmt.Sprintf("activation type %s invalid", c.Atype))
	}
	return layer
}

// Dropout layer randomly zeroes inputs during training.
type Dropout struct {
	Ratio float64
}

func (c Dropout) Marshal() LayerConfig {
	return LayerConfig{Type: "dropout", Data: marshal(c)}
}

func (c Dropout) ToString() string {
	return fmt.Sprintf("dropout %+v", c)
}

func (c *Dropout) unmarshal(data json.RawMessage) Layer {
	unmarshal(data, c)
	if c.Ratio < 0 || c.Ratio >= 1 {
		panic(fmt.Sprintf("dropout ratio %g invalid", c.Ratio))
	}
	return &dropout{Dropout: *c}
}

// LogRegression output layer with soft max activation.
type LogRegression struct{}

func (c LogRegression) Marshal() LayerConfig {
	return LayerConfig{Type: "logRegression"}
}

// Flatten layer reshapes the input to 2 dimensions.
type Flatten struct{}

func (c Flatten) Marshal() LayerConfig {
	return LayerConfig{Type: "flatten"}
}

// linear layer implementation
type linear struct {
	Linear
	paramBase
	src  num.Array
	dst  num.Array
	dsrc num.Array
	ones num.Array
}

func (l *linear) OutShape(inShape []int) []int {
	return []int{inShape[0], l.Nout}
}

func (l *linear) Init(q num.Queue, inShape []int, prev Layer) Layer {
	if len(inShape) != 2 {
		panic("Linear: expect 2 dimensional input")
	}
	nBatch, nIn := inShape[0], inShape[1]
	l.paramBase = newParams(q, []int{nIn, l.Nout}, []int{l.Nout}, nBatch)
	l.dst = q.NewArray(num.Float32, nBatch, l.Nout)
	l.dsrc = q.NewArray(num.Float32, nBatch, nIn)
	l.ones = q.NewArray(num.Float32, nBatch)
	q.Call(num.Fill(l.ones, 1))
	return l
}

func (l *linear) Fprop(in num.Array) num.Array {
	l.src = in
	l.queue.Call(
		num.Copy(l.dst, l.b),
		num.Gemm(1, 1, l.src, l.w, l.dst, num.NoTrans, num.NoTrans),
	)
	return l.dst
}

func (l *linear) Bprop(grad num.Array) num.Array {
	l.queue.Call(
		num.Gemv(1, 0, grad, l.ones, l.db, num.Trans),
		num.Gemm(1, 0, l.src, grad, l.dw, num.Trans, num.NoTrans),
		num.Gemm(1, 0, grad, l.w, l.dsrc, num.NoTrans, num.Trans),
	)
	return l.dsrc
}

// convolutional layer implemented as a matrix product over the unfolded input
type conv struct {
	Conv
	paramBase
	src   num.Array
	dst   num.Array
	dsrc  num.Array
	dst2  num.Array
	dsrc2 num.Array
	col   num.Array
	dcol  num.Array
	prod  num.Array
	ones  num.Array
	channels, width, wOut int
}

func (l *conv) OutShape(inShape []int) []int {
	stride := l.Stride
	if stride == 0 {
		stride = 1
	}
	return []int{inShape[0], l.Nfeats, num.ConvOutSize(inShape[2], l.Size, stride, l.Pad)}
}

func (l *conv) Init(q num.Queue, inShape []int, prev Layer) Layer {
	if len(inShape) != 3 {
		panic("Conv: expect 3 dimensional input")
	}
	if l.Stride == 0 {
		l.Stride = 1
	}
	n := inShape[0]
	l.channels, l.width = inShape[1], inShape[2]
	l.wOut = num.ConvOutSize(l.width, l.Size, l.Stride, l.Pad)
	if l.wOut < 1 {
		panic(fmt.Sprintf("Conv: kernel size %d too large for input width %d", l.Size, l.width))
	}
	l.paramBase = newParams(q, []int{l.channels * l.Size, l.Nfeats}, []int{l.Nfeats}, n)
	l.col = q.NewArray(num.Float32, n*l.wOut, l.channels*l.Size)
	l.dcol = q.NewArray(num.Float32, n*l.wOut, l.channels*l.Size)
	l.prod = q.NewArray(num.Float32, n*l.wOut, l.Nfeats)
	l.dst = q.NewArray(num.Float32, n, l.Nfeats, l.wOut)
	l.dsrc = q.NewArray(num.Float32, n, l.channels, l.width)
	l.dst2 = l.dst.Reshape(n, l.Nfeats*l.wOut)
	l.dsrc2 = l.dsrc.Reshape(n, l.channels*l.width)
	l.ones = q.NewArray(num.Float32, n*l.wOut)
	q.Call(num.Fill(l.ones, 1))
	return l
}

func (l *conv) Fprop(in num.Array) num.Array {
	l.src = in
	dims := in.Dims()
	src2 := in.Reshape(dims[0], l.channels*l.width)
	l.queue.Call(
		num.Im2col(src2, l.col, l.channels, l.width, l.Size, l.Stride, l.Pad),
		num.Copy(l.prod, l.b),
		num.Gemm(1, 1, l.col, l.w, l.prod, num.NoTrans, num.NoTrans),
		num.ColsToFeat(l.prod, l.dst2, l.Nfeats, l.wOut),
	)
	return l.dst
}

func (l *conv) Bprop(grad num.Array) num.Array {
	dims := grad.Dims()
	grad2 := grad.Reshape(dims[0], l.Nfeats*l.wOut)
	l.queue.Call(
		num.FeatToCols(grad2, l.prod, l.Nfeats, l.wOut),
		num.Gemv(1, 0, l.prod, l.ones, l.db, num.Trans),
		num.Gemm(1, 0, l.col, l.prod, l.dw, num.Trans, num.NoTrans),
		num.Gemm(1, 0, l.prod, l.w, l.dcol, num.NoTrans, num.Trans),
		num.Col2im(l.dcol, l.dsrc2, l.channels, l.width, l.Size, l.Stride, l.Pad),
	)
	return l.dsrc
}

// pool layer implementation
type maxPool struct {
	MaxPool
	queue  num.Queue
	src    num.Array
	dst    num.Array
	dsrc   num.Array
	dst2   num.Array
	dsrc2  num.Array
	argmax num.Array
	channels, width, wOut int
}

func (l *maxPool) OutShape(inShape []int) []int {
	stride := l.Stride
	if stride == 0 {
		stride = l.Size
	}
	return []int{inShape[0], inShape[1], num.PoolOutSize(inShape[2], l.Size, stride)}
}

func (l *maxPool) Init(q num.Queue, inShape []int, prev Layer) Layer {
	if len(inShape) != 3 {
		panic("MaxPool: expect 3 dimensional input")
	}
	if l.Stride == 0 {
		l.Stride = l.Size
	}
	l.queue = q
	n := inShape[0]
	l.channels, l.width = inShape[1], inShape[2]
	l.wOut = num.PoolOutSize(l.width, l.Size, l.Stride)
	if l.wOut < 1 {
		panic(fmt.Sprintf("MaxPool: pool size %d too large for input width %d", l.Size, l.width))
	}
	l.dst = q.NewArray(num.Float32, n, l.channels, l.wOut)
	l.dsrc = q.NewArray(num.Float32, n, l.channels, l.width)
	l.dst2 = l.dst.Reshape(n, l.channels*l.wOut)
	l.dsrc2 = l.dsrc.Reshape(n, l.channels*l.width)
	l.argmax = q.NewArray(num.Int32, n, l.channels*l.wOut)
	return l
}

func (l *maxPool) Fprop(in num.Array) num.Array {
	l.src = in
	dims := in.Dims()
	src2 := in.Reshape(dims[0], l.channels*l.width)
	l.queue.Call(num.MaxPool(src2, l.dst2, l.argmax, l.channels, l.width, l.Size, l.Stride))
	return l.dst
}

func (l *maxPool) Bprop(grad num.Array) num.Array {
	dims := grad.Dims()
	grad2 := grad.Reshape(dims[0], l.channels*l.wOut)
	l.queue.Call(num.MaxPoolGrad(grad2, l.dsrc2, l.argmax, l.channels, l.width, l.Size, l.Stride))
	return l.dsrc
}

// activation layers
type activation struct {
	Activation
	layerBase
	activ func(x, y num.Array) num.Function
	deriv func(x, grad, y num.Array) num.Function
	loss  num.Array
	queue num.Queue
}

func (l *activation) Init(q num.Queue, inShape []int, prev Layer) Layer {
	l.queue = q
	l.layerBase = newLayerBase(q, inShape, inShape)
	l.loss = q.NewArray(num.Float32, inShape...)
	return l
}

func (l *activation) Fprop(in num.Array) num.Array {
	l.src = in
	l.queue.Call(l.activ(l.src, l.dst))
	return l.dst
}

func (l *activation) Bprop(grad num.Array) num.Array {
	l.queue.Call(l.deriv(l.src, grad, l.dsrc))
	return l.dsrc
}

func (l *activation) Loss(yOneHot, yPred num.Array) num.Array {
	l.queue.Call(num.QuadraticLoss(yOneHot, yPred, l.loss))
	return l.loss
}

// dropout layer, passes input through unchanged except when training
type dropout struct {
	Dropout
	layerBase
	queue    num.Queue
	mask     num.Array
	maskData []float32
	rng      *rand.Rand
	train    bool
}

func (l *dropout) Init(q num.Queue, inShape []int, prev Layer) Layer {
	l.queue = q
	l.layerBase = newLayerBase(q, inShape, inShape)
	l.mask = q.NewArray(num.Float32, inShape...)
	l.maskData = make([]float32, num.Prod(inShape))
	return l
}

func (l *dropout) Fprop(in num.Array) num.Array {
	if !l.train || l.Ratio == 0 {
		l.src = nil
		return in
	}
	if l.rng == nil {
		panic("Dropout: rng not set")
	}
	l.src = in
	keep := float32(1 / (1 - l.Ratio))
	for i := range l.maskData {
		if l.rng.Float64() < l.Ratio {
			l.maskData[i] = 0
		} else {
			l.maskData[i] = keep
		}
	}
	l.queue.Call(
		num.Write(l.mask, l.maskData),
		num.Mul(l.src, l.mask, l.dst),
	)
	return l.dst
}

func (l *dropout) Bprop(grad num.Array) num.Array {
	if l.src == nil {
		return grad
	}
	l.queue.Call(num.Mul(grad, l.mask, l.dsrc))
	return l.dsrc
}

// log regression output layer
type logRegression struct {
	layerBase
	loss  num.Array
	queue num.Queue
}

func (l *logRegression) ToString() string { return "logRegression" }

func (l *logRegression) Init(q num.Queue, inShape []int, prev Layer) Layer {
	l.queue = q
	l.layerBase = newLayerBase(q, inShape, inShape)
	l.loss = q.NewArray(num.Float32, inShape...)
	return l
}

func (l *logRegression) Fprop(in num.Array) num.Array {
	l.src = in
	l.queue.Call(num.Softmax(l.src, l.dst))
	return l.dst
}

func (l *logRegression) Bprop(grad num.Array) num.Array {
	l.queue.Call(num.Copy(l.dsrc, grad))
	return l.dsrc
}

func (l *logRegression) Loss(yOneHot, yPred num.Array) num.Array {
	l.queue.Call(num.SoftmaxLoss(yOneHot, yPred, l.loss))
	return l.loss
}

type flatten struct {
	layerBase
}

func (l *flatten) ToString() string { return "flatten" }

func (l *flatten) OutShape(inShape []int) []int {
	return []int{inShape[0], num.Prod(inShape[1:])}
}

func (l *flatten) Init(q num.Queue, inShape []int, prev Layer) Layer {
	return l
}

func (l *flatten) Fprop(in num.Array) num.Array {
	l.src = in
	l.dst = in.Reshape(in.Dims()[0], -1)
	return l.dst
}

func (l *flatten) Bprop(grad num.Array) num.Array {
	l.dsrc = grad.Reshape(l.src.Dims()...)
	return l.dsrc
}

// base layer type
type layerBase struct {
	src  num.Array
	dst  num.Array
	dsrc num.Array
}

func newLayerBase(q num.Queue, inShape, outShape []int) layerBase {
	return layerBase{
		dst:  q.NewArray(num.Float32, outShape...),
		dsrc: q.NewArray(num.Float32, inShape...),
	}
}

func (l layerBase) OutShape(inShape []int) []int { return inShape }

// weight and bias parameters
type paramBase struct {
	queue  num.Queue
	w, b   num.Array
	dw, db num.Array
	vw, vb num.Array
	nBatch float32
}

func newParams(q num.Queue, wShape, bShape []int, nBatch int) paramBase {
	return paramBase{
		queue:  q,
		w:      q.NewArray(num.Float32, wShape...),
		b:      q.NewArray(num.Float32, bShape...),
		dw:     q.NewArray(num.Float32, wShape...),
		db:     q.NewArray(num.Float32, bShape...),
		vw:     q.NewArray(num.Float32, wShape...),
		vb:     q.NewArray(num.Float32, bShape...),
		nBatch: float32(nBatch),
	}
}

func (p paramBase) Params() (W, B num.Array) {
	return p.w, p.b
}

func (p paramBase) ParamGrads() (dW, dB num.Array) {
	return p.dw, p.db
}

func (p paramBase) InitParams(scale, bias float32, normal bool, rng *rand.Rand) {
	weights := make([]float32, num.Prod(p.w.Dims()))
	for i := range weights {
		if normal {
			weights[i] = float32(rng.NormFloat64()) * scale
		} else {
			weights[i] = rng.Float32() * scale
		}
	}
	p.queue.Call(
		num.Write(p.w, weights),
		num.Fill(p.b, bias),
		num.Fill(p.vw, 0),
		num.Fill(p.vb, 0),
	)
}

func (p paramBase) SetParams(W, B num.Array) {
	p.queue.Call(num.Copy(p.w, W), num.Copy(p.b, B))
}

func (p paramBase) UpdateParams(learningRate, weightDecay, momentum float32) {
	if weightDecay != 0 {
		p.queue.Call(num.Axpy(weightDecay*p.nBatch, p.w, p.dw))
	}
	if momentum != 0 {
		p.queue.Call(
			num.Scale(momentum, p.vw),
			num.Axpy(-learningRate/p.nBatch, p.dw, p.vw),
			num.Axpy(1, p.vw, p.w),
			num.Scale(momentum, p.vb),
			num.Axpy(-learningRate/p.nBatch, p.db, p.vb),
			num.Axpy(1, p.vb, p.b),
		)
	} else {
		p.queue.Call(
			num.Axpy(-learningRate/p.nBatch, p.dw, p.w),
			num.Axpy(-learningRate/p.nBatch, p.db, p.b),
		)
	}
}

func marshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func unmarshal(data json.RawMessage, v interface{}) {
	err := json.Unmarshal(data, v)
	if err != nil {
		panic(err)
	}
}
