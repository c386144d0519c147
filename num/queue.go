package num

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

const queueSize = 64

// Device interface type
type Device interface {
	// Setup new worker queue
	NewQueue(threads int) Queue
	// Allocate new n dimensional array
	NewArray(dtype DataType, dims ...int) Array
	NewArrayLike(a Array) Array
}

// NewCPUDevice returns a new CPU device
func NewCPUDevice() Device {
	return cpuDevice{}
}

// A Queue processes a series of operations on a Device
type Queue interface {
	Device
	Dev() Device
	// Asyncronous function call
	Call(args ...Function) Queue
	// Wait for any pending requests to complete
	Finish()
	// Shutdown the queue and release any resources
	Shutdown()
	// Enable profiling
	Profiling(on bool)
	PrintProfile()
}

// Function is a queued operation which is applied when the queue is executed.
type Function struct {
	name string
	call func(threads int)
}

func fn(name string, call func()) Function {
	return Function{name: name, call: func(threads int) { call() }}
}

func fnt(name string, call func(threads int)) Function {
	return Function{name: name, call: call}
}

type cpuDevice struct{}

func (d cpuDevice) NewQueue(threads int) Queue {
	if threads < 1 {
		threads = 1
	}
	return &cpuQueue{
		cpuDevice: d,
		threads:   threads,
		profile:   newProfile(),
	}
}

type cpuQueue struct {
	cpuDevice
	buffer  [queueSize]Function
	queued  int
	threads int
	*profile
}

func (q *cpuQueue) Dev() Device { return q.cpuDevice }

func (q *cpuQueue) exec() {
	if q.profile.enabled {
		for _, f := range q.buffer[:q.queued] {
			start := time.Now()
			f.call(q.threads)
			q.profile.add(f.name, time.Since(start))
		}
	} else {
		for _, f := range q.buffer[:q.queued] {
			f.call(q.threads)
		}
	}
	q.queued = 0
}

func (q *cpuQueue) Call(args ...Function) Queue {
	for _, arg := range args {
		if q.queued >= queueSize {
			q.exec()
		}
		q.buffer[q.queued] = arg
		q.queued++
	}
	return q
}

func (q *cpuQueue) Finish() {
	if q.queued > 0 {
		q.exec()
	}
}

func (q *cpuQueue) Shutdown() {
	q.Finish()
	if q.profile.enabled {
		q.PrintProfile()
	}
}

// parFor splits n units of work across up to threads goroutines and blocks until done.
func parFor(threads, n int, apply func(lo, hi int)) {
	if threads > n {
		threads = n
	}
	if threads <= 1 {
		apply(0, n)
		return
	}
	var wg sync.WaitGroup
	chunk := (n + threads - 1) / threads
	for lo := 0; lo < n; lo += chunk {
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			apply(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
}

// profiling functions
type profile struct {
	prof    map[string]profileRec
	enabled bool
}

type profileRec struct {
	name  string
	calls int64
	msec  float64
}

func newProfile() *profile {
	return &profile{prof: make(map[string]profileRec)}
}

func (p *profile) Profiling(on bool) {
	p.enabled = on
}

func (p *profile) add(name string, elapsed time.Duration) {
	r := p.prof[name]
	r.name = name
	r.calls++
	r.msec += elapsed.Seconds() * 1000
	p.prof[name] = r
}

func (p *profile) PrintProfile() {
	fmt.Println("== Profile ==")
	list := make([]profileRec, len(p.prof))
	i := 0
	for _, v := range p.prof {
		list[i] = v
		i++
	}
	sort.Slice(list, func(i, j int) bool { return list[j].msec < list[i].msec })
	totalCalls := int64(0)
	totalMsec := 0.0
	for _, r := range list {
		fmt.Printf("%-25s %8d calls %10.1f msec\n", r.name, r.calls, r.msec)
		totalCalls += r.calls
		totalMsec += r.msec
	}
	fmt.Printf("%-25s %8d calls %10.1f msec\n", "TOTAL", totalCalls, totalMsec)
}
