package consul_sdk

// Version and Build are overridden at link time with -ldflags.
var (
	Version = "v0.1.0"
	Build   = "n/a"
)
