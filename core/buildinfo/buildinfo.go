// Package buildinfo carries the version stamped into the binary.
package buildinfo

// Set with -ldflags, for example:
//
//	-X 'github.com/m3rciful/pdfbot/core/buildinfo.Version=v1.2.3'
//	-X 'github.com/m3rciful/pdfbot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/pdfbot/core/buildinfo.Date=2025-08-30T12:00:00Z'
var (
	Version = "dev"
	Commit  = "local"
	// Date is the RFC3339 build time; empty for local builds.
	Date = ""
)

// Release names the build as version+commit, the form error reports are grouped by.
func Release() string {
	return Version + "+" + Commit
}
