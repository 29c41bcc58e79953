package main

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// defaultSocketPath mirrors the agent daemon's own default so agentctl
// finds the socket with no configuration in the common case.
func defaultSocketPath() string {
	if runtime.GOOS == "linux" {
		return filepath.Join("/run/user", strconv.Itoa(os.Getuid()), "aios-agent.sock")
	}
	return "/tmp/aios-agent.sock"
}
