// ABOUTME: Variable-ratio polyphase resampler for interleaved float32 audio
// ABOUTME: Ratio corrections are smoothed per output frame to avoid phase steps
package resample

import (
	"math"

	"github.com/pkg/errors"
)

// Ratio correction limits accepted by SetRatio
const (
	MinRatioCorrection = 0.95
	MaxRatioCorrection = 16.0
)

// inputBlock is the number of input frames buffered before compaction
const inputBlock = 250

// VResampler converts between two sample rates whose ratio drifts slowly
type VResampler struct {
	InpCount int       // input frames available
	InpData  []float32 // interleaved input, nil for silence
	OutCount int       // output frames wanted
	OutData  []float32 // interleaved output, nil to discard

	nchan int
	hlen  int
	ratio float64
	table []float32
	buf   []float32
	inmax int
	c1    []float32
	c2    []float32

	index int     // frame position of the filter window in buf
	nread int     // frames still needed to fill the window
	nzero int     // consecutive zero input frames in the window
	phase float64 // fractional position, in table phases
	pstep float64 // current phase increment
	qstep float64 // target phase increment
	wstep float64 // smoothing gain for pstep
}

// New creates a resampler producing ratio output frames per input frame.
// hlen is the filter half length in input frames (quality); 16 to 96 is
// the useful range.
func New(ratio float64, nchan, hlen int) (*VResampler, error) {
	if nchan < 1 {
		return nil, errors.New("resampler needs at least one channel")
	}
	if ratio <= 0 {
		return nil, errors.Errorf("invalid resample ratio %g", ratio)
	}
	if hlen < 8 {
		return nil, errors.Errorf("filter length %d too short", hlen)
	}
	fr := 1 - 2.6/float64(hlen)
	h := hlen
	k := inputBlock
	if ratio < 1 {
		fr *= ratio
		h = int(math.Ceil(float64(h) / ratio))
		k = int(math.Ceil(float64(k) / ratio))
	}
	step := phases / ratio
	r := &VResampler{
		nchan: nchan,
		hlen:  h,
		ratio: ratio,
		table: newTable(fr, h),
		buf:   make([]float32, nchan*(2*h-1+k)),
		inmax: k,
		c1:    make([]float32, h),
		c2:    make([]float32, h),
		pstep: step,
		qstep: step,
		wstep: 1,
	}
	r.Reset()
	return r, nil
}

// Reset discards buffered input and restarts at phase zero.
// The current ratio correction and smoothing are kept.
func (r *VResampler) Reset() {
	r.InpCount = 0
	r.OutCount = 0
	r.InpData = nil
	r.OutData = nil
	r.index = 0
	r.phase = 0
	r.nread = 2 * r.hlen
	r.nzero = 0
}

// Channels returns the number of interleaved channels
func (r *VResampler) Channels() int { return r.nchan }

// InpSize returns the length of the filter window in input frames
func (r *VResampler) InpSize() int { return 2 * r.hlen }

// InpDist returns the distance in input frames from the next output position
// to the next input frame to be read
func (r *VResampler) InpDist() float64 {
	return float64(r.hlen+1-r.nread) - r.phase/phases
}

// SetRatio applies a correction factor to the nominal ratio, clamped to
// [MinRatioCorrection, MaxRatioCorrection]
func (r *VResampler) SetRatio(rc float64) {
	if rc > MaxRatioCorrection {
		rc = MaxRatioCorrection
	}
	if rc < MinRatioCorrection {
		rc = MinRatioCorrection
	}
	r.qstep = phases / (r.ratio * rc)
}

// SetRatioFilter sets how many output frames a ratio change is smoothed
// over. Values below one apply changes immediately.
func (r *VResampler) SetRatioFilter(t float64) {
	if t < 1 {
		r.wstep = 1
		return
	}
	r.wstep = 1 - math.Exp(-1/t)
}

// Process resamples until OutCount or InpCount reaches zero
func (r *VResampler) Process() {
	hl := r.hlen
	nc := r.nchan
	in := r.index
	nr := r.nread
	nz := r.nzero
	ph := r.phase
	dp := r.pstep
	p1 := in * nc
	p2 := p1 + (2*hl-nr)*nc

	for r.OutCount > 0 {
		if nr > 0 {
			if r.InpCount == 0 {
				break
			}
			if r.InpData != nil {
				copy(r.buf[p2:p2+nc], r.InpData[:nc])
				r.InpData = r.InpData[nc:]
				nz = 0
			} else {
				clear(r.buf[p2 : p2+nc])
				if nz < 2*hl {
					nz++
				}
			}
			nr--
			p2 += nc
			r.InpCount--
			continue
		}

		if r.OutData != nil {
			if nz < 2*hl {
				r.filter(ph, p1, p2)
			} else {
				clear(r.OutData[:nc])
			}
			r.OutData = r.OutData[nc:]
		}
		r.OutCount--

		dd := r.qstep - dp
		if math.Abs(dd) < 1e-30 {
			dp = r.qstep
		} else {
			dp += r.wstep * dd
		}
		ph += dp
		if ph >= phases {
			nr = int(math.Floor(ph / phases))
			ph -= float64(nr * phases)
			in += nr
			p1 += nr * nc
			if in >= r.inmax {
				n := (2*hl - nr) * nc
				copy(r.buf, r.buf[p1:p1+n])
				in = 0
				p1 = 0
				p2 = n
			}
		}
	}

	r.index = in
	r.nread = nr
	r.nzero = nz
	r.phase = ph
	r.pstep = dp
}

// filter writes one output frame for the window starting at p1 and ending
// before p2, interpolating coefficients between adjacent table phases
func (r *VResampler) filter(ph float64, p1, p2 int) {
	hl := r.hlen
	nc := r.nchan
	k := int(ph)
	b := float32(ph - float64(k))
	a := 1 - b
	q1 := hl * k
	q2 := hl * (phases - k)
	for i := 0; i < hl; i++ {
		r.c1[i] = a*r.table[q1+i] + b*r.table[q1+i+hl]
		r.c2[i] = a*r.table[q2+i] + b*r.table[q2+i-hl]
	}
	for c := 0; c < nc; c++ {
		i1 := p1 + c
		i2 := p2 + c
		var s float32
		for i := 0; i < hl; i++ {
			i2 -= nc
			s += r.buf[i1]*r.c1[i] + r.buf[i2]*r.c2[i]
			i1 += nc
		}
		r.OutData[c] = s
	}
}
