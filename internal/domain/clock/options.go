package clock

// Option applies a configuration option to the Reconciler.
type Option func(*Reconciler)

// WithAlpha sets the EMA smoothing factor for offset updates.
func WithAlpha(alpha float64) Option {
	return func(r *Reconciler) {
		if alpha > 0 && alpha <= 1 {
			r.alpha = alpha
		}
	}
}
