package ports

// Runner defines the interface for long-running adapters
type Runner interface {
	// Start starts the adapter in the background
	Start() error

	// Stop stops the adapter and releases its resources
	Stop() error
}
