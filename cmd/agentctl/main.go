// Command agentctl is a terminal client for the agent daemon: it connects
// over the IPC socket as a dual-role chat+confirm client, giving a
// developer something to exercise the kernel with by hand in place of the
// (out-of-scope) chat, confirm, and dock GUIs.
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

const (
	appName    = "agentctl"
	appVersion = "0.1.0"
)

func main() {
	var socketPath string

	root := &cobra.Command{
		Use:     appName,
		Short:   "agentctl — a terminal client for the aios agent daemon",
		Version: appVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(socketPath)
		},
	}

	root.Flags().StringVar(&socketPath, "socket", socketPathFromEnv(), "path to the agent's Unix domain socket")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func socketPathFromEnv() string {
	if v := os.Getenv("AIOS_SOCKET"); v != "" {
		return v
	}
	return defaultSocketPath()
}

func runTUI(socketPath string) error {
	client, err := newIPCClient(socketPath)
	if err != nil {
		return fmt.Errorf("connecting to agent: %w", err)
	}
	defer client.Close()

	p := tea.NewProgram(newModel(client), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
