package detect

import (
	"math"

	"github.com/okian/evoked/internal/domain/epoch"
)

// newTemplate samples an idealized Gaussian response over the canonical
// response window. latency and width are seconds; the peak sits at latency
// past the stimulus with a standard deviation of width/3, matching the shape
// the synthetic source injects. The amplitude is unit: Pearson correlation
// is scale invariant.
func newTemplate(w epoch.Window, rate, latency, width float64) []float64 {
	n := int(math.Round((w.ResponseEnd - w.ResponseStart) * rate))
	if n < 2 {
		n = 2
	}
	sigma := width / 3
	if sigma <= 0 {
		sigma = defaultTemplateWidth / 3
	}

	out := make([]float64, n)
	for i := range out {
		t := w.ResponseStart + float64(i)/rate
		d := t - latency
		out[i] = math.Exp(-d * d / (2 * sigma * sigma))
	}
	return out
}

// resample linearly interpolates tpl to length n. Epoch jitter can shift the
// response segment a couple of samples off the template length.
func resample(tpl []float64, n int) []float64 {
	if n <= 0 || len(tpl) == 0 {
		return nil
	}
	if len(tpl) == n {
		return tpl
	}
	out := make([]float64, n)
	if n == 1 {
		out[0] = tpl[0]
		return out
	}
	scale := float64(len(tpl)-1) / float64(n-1)
	for i := range out {
		pos := float64(i) * scale
		j := int(pos)
		if j >= len(tpl)-1 {
			out[i] = tpl[len(tpl)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = tpl[j]*(1-frac) + tpl[j+1]*frac
	}
	return out
}
