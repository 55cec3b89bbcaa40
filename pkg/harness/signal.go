package harness

// Signal is the feature source handed to the classifier. The classifier pulls
// samples from it in chunks instead of receiving the whole buffer.
type Signal struct {
	TotalLength int
	get         func(offset, length int, out []float32) error
}

// NewSignal returns a Signal that copies samples out of buf.
func NewSignal(buf FeatureBuffer) *Signal {
	return &Signal{
		TotalLength: len(buf),
		get: func(offset, length int, out []float32) error {
			copy(out[:length], buf[offset:offset+length])
			return nil
		},
	}
}

// Get copies length samples starting at offset into out.
func (s *Signal) Get(offset, length int, out []float32) error {
	if offset < 0 || length < 0 || offset+length > s.TotalLength || len(out) < length {
		return ErrOutOfRange
	}
	return s.get(offset, length, out)
}
