package repository

// Option applies a configuration option to the Memory repository.
type Option func(*Memory)

// WithIDGenerator overrides the athlete id source.
func WithIDGenerator(gen func() string) Option {
	return func(m *Memory) {
		if gen != nil {
			m.newID = gen
		}
	}
}

// WithOnChange registers a hook run after every successful mutation,
// outside the repository lock.
func WithOnChange(fn func()) Option {
	return func(m *Memory) {
		m.onChange = fn
	}
}
