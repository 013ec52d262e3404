package vision

import (
	"image"
	"math"
	"runtime"
	"sync"
)

const flatEpsilon = 1e-6

// Matcher finds templates in frames. It is safe for concurrent use.
type Matcher struct {
	Cache *TemplateCache
	// Root is the template directory containing battle/<scope>/<file>.
	Root string
	// Threshold is used when a call passes threshold <= 0.
	Threshold float64
	// Scale downsamples frame and template before matching. Values outside
	// (0, 1] mean full resolution.
	Scale float64
}

// NewMatcher returns a Matcher reading templates below root.
func NewMatcher(cache *TemplateCache, root string, threshold, scale float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{Cache: cache, Root: root, Threshold: threshold, Scale: scale}
}

func (m *Matcher) scale() float64 {
	if m.Scale <= 0 || m.Scale > 1 {
		return 1
	}
	return m.Scale
}

// Prepare converts img once so repeated Find calls on the same capture do
// not redo the grayscale conversion and integral images.
func (m *Matcher) Prepare(img image.Image) image.Image {
	return NewFrame(img, m.scale())
}

// Exists reports whether the template for ref is present on disk.
func (m *Matcher) Exists(ref Ref) bool {
	return m.Cache.Exists(ref.Path(m.Root))
}

// Find looks for ref in frame. A threshold <= 0 uses m.Threshold. Not finding
// the template is reported as ok == false with a nil error; a missing or
// unreadable template file is an error.
func (m *Matcher) Find(frame image.Image, ref Ref, threshold float64) (Result, bool, error) {
	if threshold <= 0 {
		threshold = m.Threshold
	}
	res, err := m.Best(frame, ref)
	if err != nil {
		return Result{}, false, err
	}
	if res.Score < threshold {
		return res, false, nil
	}
	return res, true, nil
}

// Best returns the highest scoring location of ref in frame, whatever its
// score. A template larger than the frame scores -1.
func (m *Matcher) Best(frame image.Image, ref Ref) (Result, error) {
	scale := m.scale()
	k, err := m.Cache.kernel(ref.Path(m.Root), scale)
	if err != nil {
		return Result{}, err
	}
	f := NewFrame(frame, scale)

	bx, by, score := correlate(f, k)
	if score < -1 {
		return Result{Score: -1}, nil
	}
	return Result{
		X:     int(math.Floor((float64(bx) + float64(k.w)/2) / scale)),
		Y:     int(math.Floor((float64(by) + float64(k.h)/2) / scale)),
		Score: score,
	}, nil
}

type candidate struct {
	x, y  int
	score float64
}

// correlate scans every placement of k over f and returns the best one.
// Rows are split across workers; ties keep the top-most, left-most placement.
// The returned score is below -1 when k does not fit inside f.
func correlate(f *Frame, k *kernel) (int, int, float64) {
	rows := f.p.h - k.h + 1
	cols := f.p.w - k.w + 1
	if rows <= 0 || cols <= 0 {
		return 0, 0, -2
	}

	workers := min(runtime.NumCPU(), rows)
	chunk := (rows + workers - 1) / workers
	results := make([]candidate, workers)
	n := float64(k.w * k.h)

	var wg sync.WaitGroup
	for wi := 0; wi < workers; wi++ {
		start := wi * chunk
		end := min(start+chunk, rows)
		results[wi] = candidate{score: -2}
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(wi, start, end int) {
			defer wg.Done()
			best := candidate{score: -2}
			for y := start; y < end; y++ {
				for x := 0; x < cols; x++ {
					s := scoreAt(f, k, x, y, n)
					if s > best.score {
						best = candidate{x: x, y: y, score: s}
					}
				}
			}
			results[wi] = best
		}(wi, start, end)
	}
	wg.Wait()

	best := candidate{score: -2}
	for _, r := range results {
		if r.score > best.score {
			best = r
		}
	}
	return best.x, best.y, best.score
}

func scoreAt(f *Frame, k *kernel, x, y int, n float64) float64 {
	sum, sq := f.window(x, y, k.w, k.h)
	variance := sq - sum*sum/n

	if k.norm < flatEpsilon {
		// A flat template only matches a flat window of similar brightness.
		if variance/n > 1 {
			return 0
		}
		return 1 - math.Abs(sum/n-k.mean)/255
	}
	if variance <= flatEpsilon {
		return 0
	}

	var num float64
	for j := 0; j < k.h; j++ {
		frow := f.p.pix[(y+j)*f.p.w+x : (y+j)*f.p.w+x+k.w]
		trow := k.zm[j*k.w : (j+1)*k.w]
		for i, t := range trow {
			num += t * frow[i]
		}
	}
	s := num / (k.norm * math.Sqrt(variance))
	return math.Max(-1, math.Min(1, s))
}
