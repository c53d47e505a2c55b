package version

import "fmt"

// Version is set at build time via -ldflags
var Version = "dev"

// UserAgent identifies this install to the Kimai server
func UserAgent(installID string) string {
	return fmt.Sprintf("kimai-agent/%s (%s)", Version, installID)
}
