package engine

// Options represents configuration options for the Engine.
type Options struct {
	// PermissiveFilter emits every snapshot candidate instead of only
	// those that change the top-10 image. Off by default; the strict
	// filter is authoritative.
	PermissiveFilter bool
}

// DefaultEngineOptions returns the default engine options.
func DefaultEngineOptions() *Options {
	return &Options{
		PermissiveFilter: false,
	}
}
