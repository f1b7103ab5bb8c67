package queue

type options struct {
	capacity int
}

// Option applies a configuration option to the InMemoryQueue.
type Option func(*options)

// WithCapacity sets the maximum capacity of the queue.
func WithCapacity(capacity int) Option {
	return func(o *options) {
		if capacity > 0 {
			o.capacity = capacity
		}
	}
}
