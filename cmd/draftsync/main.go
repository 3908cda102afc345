package main

import "github.com/iudanet/draftsync/internal/cli"

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
)

func main() {
	cli.SetVersion(Version, BuildDate)
	cli.Execute()
}
