package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/madfront-labs/madfront/internal/buildfile"
	"github.com/madfront-labs/madfront/internal/pipeline"
)

var (
	taskNameStyle = lipgloss.NewStyle().Bold(true)
	taskKindStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

func init() {
	rootCmd.AddCommand(tasksCmd)
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the tasks of the build script",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(0)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		source := buildfile.FileName
		if !p.found {
			source = "default build script"
		}
		layout := p.graph.Layout()
		fmt.Fprintf(out, "Tasks from %s (src: %s, dist: %s)\n\n", source, layout.Src, layout.Dist)

		width := 0
		for _, name := range p.graph.Names() {
			width = max(width, len(name))
		}
		for _, name := range p.graph.Names() {
			t, _ := p.graph.Get(name)
			pad := strings.Repeat(" ", width-len(name))
			fmt.Fprintf(out, "  %s%s  %s  %s\n",
				taskNameStyle.Render(name), pad,
				taskKindStyle.Render(fmt.Sprintf("%-9s", t.Kind)),
				describe(t))
		}
		return nil
	},
}

func describe(t pipeline.Task) string {
	var parts []string
	if t.Description != "" {
		parts = append(parts, t.Description)
	}
	switch t.Kind {
	case pipeline.KindSeries:
		steps := make([]string, len(t.Steps))
		for i, s := range t.Steps {
			steps[i] = s.String()
		}
		parts = append(parts, "["+strings.Join(steps, " -> ")+"]")
	case pipeline.KindParallel:
		parts = append(parts, "["+strings.Join(t.Members, " | ")+"]")
	case pipeline.KindTransform:
		names := make([]string, len(t.Filters))
		for i, f := range t.Filters {
			names[i] = f.Name
		}
		chain := "copy"
		if len(names) > 0 {
			chain = strings.Join(names, " > ")
		}
		parts = append(parts, fmt.Sprintf("%s (%s) -> %s", strings.Join(t.Src, ", "), chain, t.Dest))
	}
	return strings.Join(parts, " ")
}
