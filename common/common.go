// Package common holds shared constants and logging setup used across
// the compute registry packages and binaries.
package common

// PackageName is the service identifier used for metrics and logging.
const PackageName = "compute-registry"

// Version is set at build time via -ldflags.
var Version = "dev"
