// Package logging provides file-based logging with rotation for dotmd.
// Setup writes JSON logs to a size-rotated file (by default
// ~/.dotmd/logs/server.log), optionally tee'd to stderr;
// SetupMCPModeWithLevel, used by serve, writes to the file only.
package logging
