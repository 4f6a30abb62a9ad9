package logging

// ProgressSampler throttles per-run progress lines to one every Every
// completed files.
type ProgressSampler struct {
	every    int
	lastStep int
}

// NewProgressSampler constructs a sampler; every <= 0 falls back to 500.
func NewProgressSampler(every int) *ProgressSampler {
	if every <= 0 {
		every = 500
	}
	return &ProgressSampler{every: every}
}

// ShouldLog reports whether the completed count crossed into a new step.
func (s *ProgressSampler) ShouldLog(completed int) bool {
	if s == nil {
		return false
	}
	step := completed / s.every
	if step > s.lastStep {
		s.lastStep = step
		return true
	}
	return false
}

// Reset clears the sampler state (e.g. when a new run starts).
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastStep = 0
}
