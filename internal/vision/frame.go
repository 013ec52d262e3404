package vision

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// plane is a grayscale image stored as float64 intensities in [0, 255].
type plane struct {
	w, h int
	pix  []float64
}

func toPlane(img image.Image, scale float64) *plane {
	b := img.Bounds()
	var n *image.NRGBA
	if scale >= 1 {
		n = imaging.Clone(img)
	} else {
		w := max(1, int(math.Round(float64(b.Dx())*scale)))
		h := max(1, int(math.Round(float64(b.Dy())*scale)))
		n = imaging.Resize(img, w, h, imaging.Box)
	}

	p := &plane{w: n.Rect.Dx(), h: n.Rect.Dy()}
	p.pix = make([]float64, p.w*p.h)
	for y := 0; y < p.h; y++ {
		row := n.Pix[y*n.Stride:]
		for x := 0; x < p.w; x++ {
			i := x * 4
			p.pix[y*p.w+x] = 0.299*float64(row[i]) + 0.587*float64(row[i+1]) + 0.114*float64(row[i+2])
		}
	}
	return p
}

// Frame is a captured screen prepared for matching. It still behaves as the
// original image, so it can be passed anywhere an image.Image is expected
// and its Bounds are the full device resolution.
type Frame struct {
	src   image.Image
	scale float64
	p     *plane
	// Integral images of intensity and squared intensity, (w+1)*(h+1).
	sum, sq []float64
}

// NewFrame prepares img for matching at scale (0 < scale <= 1).
func NewFrame(img image.Image, scale float64) *Frame {
	if f, ok := img.(*Frame); ok {
		if f.scale == scale {
			return f
		}
		img = f.src
	}
	p := toPlane(img, scale)
	f := &Frame{src: img, scale: scale, p: p}

	stride := p.w + 1
	f.sum = make([]float64, stride*(p.h+1))
	f.sq = make([]float64, stride*(p.h+1))
	for y := 0; y < p.h; y++ {
		var rowSum, rowSq float64
		for x := 0; x < p.w; x++ {
			v := p.pix[y*p.w+x]
			rowSum += v
			rowSq += v * v
			f.sum[(y+1)*stride+x+1] = f.sum[y*stride+x+1] + rowSum
			f.sq[(y+1)*stride+x+1] = f.sq[y*stride+x+1] + rowSq
		}
	}
	return f
}

// Source returns the unprepared image.
func (f *Frame) Source() image.Image { return f.src }

func (f *Frame) ColorModel() color.Model { return f.src.ColorModel() }
func (f *Frame) Bounds() image.Rectangle { return f.src.Bounds() }
func (f *Frame) At(x, y int) color.Color { return f.src.At(x, y) }

// window returns the intensity sum and squared sum of the w*h window at (x, y).
func (f *Frame) window(x, y, w, h int) (sum, sq float64) {
	stride := f.p.w + 1
	a := y*stride + x
	b := y*stride + x + w
	c := (y+h)*stride + x
	d := (y+h)*stride + x + w
	return f.sum[d] - f.sum[b] - f.sum[c] + f.sum[a], f.sq[d] - f.sq[b] - f.sq[c] + f.sq[a]
}

// kernel is a template prepared for correlation at one scale.
type kernel struct {
	w, h int
	zm   []float64 // zero-mean intensities
	norm float64   // sqrt(sum(zm^2))
	mean float64
}

func newKernel(img image.Image, scale float64) *kernel {
	p := toPlane(img, scale)
	k := &kernel{w: p.w, h: p.h, zm: make([]float64, len(p.pix))}

	var total float64
	for _, v := range p.pix {
		total += v
	}
	k.mean = total / float64(len(p.pix))

	var sq float64
	for i, v := range p.pix {
		d := v - k.mean
		k.zm[i] = d
		sq += d * d
	}
	k.norm = math.Sqrt(sq)
	return k
}
