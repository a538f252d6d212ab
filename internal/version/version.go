package version

// Overridden at link time via -ldflags.
var (
	Version   = "2.0.0-dev"
	GitCommit = ""
	BuildTime = ""
)
