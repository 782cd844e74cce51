// Package utils holds small helpers shared by the bpmnchat commands and
// servers.
package utils

// Build metadata, set with -ldflags at release time.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// UserAgent identifies bpmnchat clients in outgoing HTTP requests.
func UserAgent() string {
	return "bpmnchat/" + Version
}
