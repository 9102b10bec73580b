package utils

// Version is the version of the exchange module. The release build sets it
// with -ldflags.
var Version = "0.1.0-dev"
