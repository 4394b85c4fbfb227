// ABOUTME: Build identity constants for the opusd server
// ABOUTME: Reported in the server hello and startup logs
package version

const (
	Version      = "0.1.0"
	Product      = "opusd"
	Manufacturer = "Audioplane"
)
