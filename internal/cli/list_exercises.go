package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listExercisesCmd = &cobra.Command{
	Use:     "list-exercises",
	Aliases: []string{"ls"},
	Short:   "List available exercises",
	Long:    `Lists the built-in exercises and those loaded from --exercises-dir.`,
	RunE:    runListExercises,
}

func runListExercises(cmd *cobra.Command, args []string) error {
	registry, err := loadRegistry(appConfig)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	ids := registry.List()
	if len(ids) == 0 {
		fmt.Fprintln(out, "No exercises found")
		return nil
	}

	descriptions := registry.ListWithDescriptions()
	fmt.Fprintln(out, "Available exercises:")
	fmt.Fprintln(out)
	for _, id := range ids {
		fmt.Fprintf(out, "  %-20s %s\n", id, descriptions[id])
	}
	fmt.Fprintln(out)

	return nil
}
