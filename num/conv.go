package num

import "fmt"

// ConvOutSize returns the output width for a convolution over w inputs.
func ConvOutSize(w, kernel, stride, pad int) int {
	return (w+2*pad-kernel)/stride + 1
}

// PoolOutSize returns the output width for a pooling operation over w inputs.
func PoolOutSize(w, pool, stride int) int {
	return (w-pool)/stride + 1
}

// Im2col unfolds the input ready for convolution as a matrix multiply.
// src has shape [n, channels*width], col has shape [n*wOut, channels*kernel]
// where each output row holds the input window for one output position.
func Im2col(src, col Array, channels, width, kernel, stride, pad int) Function {
	wOut := ConvOutSize(width, kernel, stride, pad)
	n := checkConvShape("Im2col", src, col, channels, width, kernel, wOut)
	in, out := src.Float(), col.Float()
	return fnt("im2col", func(threads int) {
		parFor(threads, n, func(b0, b1 int) {
			for b := b0; b < b1; b++ {
				for p := 0; p < wOut; p++ {
					row := out[(b*wOut+p)*channels*kernel : (b*wOut+p+1)*channels*kernel]
					for c := 0; c < channels; c++ {
						base := b*channels*width + c*width
						for k := 0; k < kernel; k++ {
							pos := p*stride + k - pad
							if pos >= 0 && pos < width {
								row[c*kernel+k] = in[base+pos]
							} else {
								row[c*kernel+k] = 0
							}
						}
					}
				}
			}
		})
	})
}

// Col2im accumulates the unfolded gradient back onto the input, reversing Im2col.
// col has shape [n*wOut, channels*kernel], dst has shape [n, channels*width].
func Col2im(col, dst Array, channels, width, kernel, stride, pad int) Function {
	wOut := ConvOutSize(width, kernel, stride, pad)
	n := checkConvShape("Col2im", dst, col, channels, width, kernel, wOut)
	in, out := col.Float(), dst.Float()
	return fnt("col2im", func(threads int) {
		parFor(threads, n, func(b0, b1 int) {
			for i := b0 * channels * width; i < b1*channels*width; i++ {
				out[i] = 0
			}
			for b := b0; b < b1; b++ {
				for p := 0; p < wOut; p++ {
					row := in[(b*wOut+p)*channels*kernel:]
					for c := 0; c < channels; c++ {
						base := b*channels*width + c*width
						for k := 0; k < kernel; k++ {
							pos := p*stride + k - pad
							if pos >= 0 && pos < width {
								out[base+pos] += row[c*kernel+k]
							}
						}
					}
				}
			}
		})
	})
}

// ColsToFeat gathers the convolution product into feature map layout.
// col has shape [n*wOut, nfeat], dst has shape [n, nfeat*wOut].
func ColsToFeat(col, dst Array, nfeat, wOut int) Function {
	n := checkFeatShape("ColsToFeat", col, dst, nfeat, wOut)
	in, out := col.Float(), dst.Float()
	return fnt("cols2feat", func(threads int) {
		parFor(threads, n, func(b0, b1 int) {
			for b := b0; b < b1; b++ {
				for p := 0; p < wOut; p++ {
					row := in[(b*wOut+p)*nfeat:]
					for f := 0; f < nfeat; f++ {
						out[b*nfeat*wOut+f*wOut+p] = row[f]
					}
				}
			}
		})
	})
}

// FeatToCols scatters a feature map gradient back to column layout, reversing ColsToFeat.
// src has shape [n, nfeat*wOut], col has shape [n*wOut, nfeat].
func FeatToCols(src, col Array, nfeat, wOut int) Function {
	n := checkFeatShape("FeatToCols", col, src, nfeat, wOut)
	in, out := src.Float(), col.Float()
	return fnt("feat2cols", func(threads int) {
		parFor(threads, n, func(b0, b1 int) {
			for b := b0; b < b1; b++ {
				for p := 0; p < wOut; p++ {
					row := out[(b*wOut+p)*nfeat:]
					for f := 0; f < nfeat; f++ {
						row[f] = in[b*nfeat*wOut+f*wOut+p]
					}
				}
			}
		})
	})
}

// MaxPool takes the max over each pooling window per channel.
// src has shape [n, channels*width], dst and argmax have shape [n, channels*wOut]
// where argmax records the index into src of each selected element.
func MaxPool(src, dst, argmax Array, channels, width, pool, stride int) Function {
	wOut := PoolOutSize(width, pool, stride)
	n := checkPoolShape("MaxPool", src, dst, argmax, channels, width, wOut)
	in, out, amax := src.Float(), dst.Float(), argmax.Int()
	return fnt("maxpool", func(threads int) {
		parFor(threads, n, func(b0, b1 int) {
			for b := b0; b < b1; b++ {
				for c := 0; c < channels; c++ {
					base := b*channels*width + c*width
					obase := b*channels*wOut + c*wOut
					for p := 0; p < wOut; p++ {
						imax := base + p*stride
						max := in[imax]
						for k := 1; k < pool; k++ {
							if v := in[base+p*stride+k]; v > max {
								max, imax = v, base+p*stride+k
							}
						}
						out[obase+p] = max
						amax[obase+p] = int32(imax)
					}
				}
			}
		})
	})
}

// MaxPoolGrad scatters the output gradient back to the max locations.
// grad and argmax have shape [n, channels*wOut], dst has shape [n, channels*width].
func MaxPoolGrad(grad, dst, argmax Array, channels, width, pool, stride int) Function {
	wOut := PoolOutSize(width, pool, stride)
	n := checkPoolShape("MaxPoolGrad", dst, grad, argmax, channels, width, wOut)
	in, out, amax := grad.Float(), dst.Float(), argmax.Int()
	return fnt("maxpool_grad", func(threads int) {
		parFor(threads, n, func(b0, b1 int) {
			for i := b0 * channels * width; i < b1*channels*width; i++ {
				out[i] = 0
			}
			for i := b0 * channels * wOut; i < b1*channels*wOut; i++ {
				out[amax[i]] += in[i]
			}
		})
	})
}

func checkConvShape(caller string, src, col Array, channels, width, kernel, wOut int) int {
	sdim, cdim := src.Dims(), col.Dims()
	if len(sdim) != 2 || sdim[1] != channels*width {
		panic(fmt.Sprintf("%s: input shape %v does not match %d channels x %d width", caller, sdim, channels, width))
	}
	n := sdim[0]
	if len(cdim) != 2 || cdim[0] != n*wOut || cdim[1] != channels*kernel {
		panic(fmt.Sprintf("%s: column shape %v expecting [%d %d]", caller, cdim, n*wOut, channels*kernel))
	}
	return n
}

func checkFeatShape(caller string, col, feat Array, nfeat, wOut int) int {
	cdim, fdim := col.Dims(), feat.Dims()
	if len(fdim) != 2 || fdim[1] != nfeat*wOut {
		panic(fmt.Sprintf("%s: feature shape %v does not match %d features x %d width", caller, fdim, nfeat, wOut))
	}
	n := fdim[0]
	if len(cdim) != 2 || cdim[0] != n*wOut || cdim[1] != nfeat {
		panic(fmt.Sprintf("%s: column shape %v expecting [%d %d]", caller, cdim, n*wOut, nfeat))
	}
	return n
}

func checkPoolShape(caller string, src, dst, argmax Array, channels, width, wOut int) int {
	sdim, ddim, adim := src.Dims(), dst.Dims(), argmax.Dims()
	if len(sdim) != 2 || sdim[1] != channels*width {
		panic(fmt.Sprintf("%s: input shape %v does not match %d channels x %d width", caller, sdim, channels, width))
	}
	n := sdim[0]
	if len(ddim) != 2 || ddim[0] != n || ddim[1] != channels*wOut {
		panic(fmt.Sprintf("%s: output shape %v expecting [%d %d]", caller, ddim, n, channels*wOut))
	}
	if !SameShape(adim, ddim) || argmax.Dtype() != Int32 {
		panic(caller + ": argmax must be int32 array with output shape")
	}
	return n
}
