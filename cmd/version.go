package cmd

import (
	"fmt"
	"runtime"
)

// Version information (injected at build time via ldflags).
var (
	Version   = "development"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// runVersion displays version information.
func runVersion() {
	fmt.Printf("Lectern %s\n", Version)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Printf("Go: %s (%s/%s)\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
