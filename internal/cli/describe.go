package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var describeCmd = &cobra.Command{
	Use:   "describe <exercise>",
	Short: "Describe an exercise in detail",
	Long:  `Shows the phases, cycle timing, animated elements and audio of an exercise.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribe,
}

func runDescribe(cmd *cobra.Command, args []string) error {
	registry, err := loadRegistry(appConfig)
	if err != nil {
		return err
	}

	def, err := registry.Get(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Exercise: %s (%s)\n", def.Name, def.ID)
	if def.Description != "" {
		fmt.Fprintf(out, "Description: %s\n", def.Description)
	}
	if len(def.Aliases) > 0 {
		fmt.Fprintf(out, "Aliases: %s\n", strings.Join(def.Aliases, ", "))
	}
	fmt.Fprintf(out, "Cycle: %.2fs\n", def.CycleDurationSeconds)
	if sum, mismatch := def.CycleMismatch(); mismatch {
		fmt.Fprintf(out, "  ⚠️  phases add up to %.2fs, the declared cycle is used\n", sum)
	}
	if err := def.Validate(); err != nil {
		fmt.Fprintf(out, "  ❌ invalid, sessions fall back to the default exercise: %s\n", err)
	}

	fmt.Fprintln(out, "\nPhases:")
	for i, p := range def.Phases {
		fmt.Fprintf(out, "  %d. %-8s %5.2fs", i+1, p.Name, p.DurationSeconds)
		if p.Instruction != "" {
			fmt.Fprintf(out, "  %s", p.Instruction)
		}
		if p.Cue != "" {
			fmt.Fprintf(out, "  [cue: %s]", p.Cue)
		}
		fmt.Fprintln(out)
	}

	if len(def.Elements) > 0 {
		fmt.Fprintln(out, "\nElements:")
		for _, el := range def.Elements {
			fmt.Fprintf(out, "  %s", el.Name)
			if el.DelaySeconds > 0 {
				fmt.Fprintf(out, " (delay %.2fs)", el.DelaySeconds)
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "    times:  %v\n", el.Times)
			fmt.Fprintf(out, "    scales: %v\n", el.Scales)
			if len(el.Opacities) > 0 {
				fmt.Fprintf(out, "    opacities: %v\n", el.Opacities)
			}
		}
	}

	if def.Audio != nil {
		fmt.Fprintln(out, "\nAudio:")
		if t := def.Audio.Background; t != nil {
			fmt.Fprintf(out, "  background:   %s (volume %.2f, loop %v)\n", t.Name, t.Volume, t.Loop)
		}
		if t := def.Audio.Instructions; t != nil {
			fmt.Fprintf(out, "  instructions: %s (volume %.2f, loop %v)\n", t.Name, t.Volume, t.Loop)
		}
	}

	fmt.Fprintln(out)
	return nil
}
