package commands

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"

	"github.com/teranos/phylo/internal/version"
	"github.com/teranos/phylo/logger"
)

// printStartupBanner prints the user-friendly startup message
func printStartupBanner(verbosity int, dbPath, addr string) {
	info := version.Get()

	lines := []string{
		fmt.Sprintf("Version:   %s (commit %s)", info.Version, info.Short()),
		fmt.Sprintf("Built:     %s", info.BuildTime),
		fmt.Sprintf("Verbosity: %s", logger.LevelName(verbosity)),
		fmt.Sprintf("Database:  %s", dbPath),
		fmt.Sprintf("Listening: %s", addr),
	}
	pterm.DefaultBox.WithTitle("phylo").Println(strings.Join(lines, "\n"))
	pterm.Info.Println("Press Ctrl+C to stop")
}
