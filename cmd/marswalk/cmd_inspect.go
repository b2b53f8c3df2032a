package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"marswalk/internal/persistence/indexdb"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <run-dir>",
		Short: "Summarize a recorded run from its index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := indexdb.OpenReader(filepath.Join(args[0], "index.db"))
			if err != nil {
				return fmt.Errorf("open index: %w", err)
			}
			defer r.Close()

			ctx := cmd.Context()
			sum, err := r.Summary(ctx)
			if err != nil {
				return err
			}
			stats, err := r.AgentStats(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Run    indexdb.RunSummary  `json:"run"`
					Agents []indexdb.AgentStat `json:"agents"`
				}{sum, stats})
			}

			fmt.Fprintf(out, "run:      %s\n", sum.RunID)
			fmt.Fprintf(out, "grid:     %dx%d, %d agents, seed %d\n", sum.Width, sum.Height, sum.Agents, sum.Seed)
			fmt.Fprintf(out, "started:  %s\n", sum.StartedAt)
			if sum.EndedAt != "" {
				fmt.Fprintf(out, "ended:    %s (tick %d)\n", sum.EndedAt, sum.FinalTick)
			} else {
				fmt.Fprintln(out, "ended:    (unfinished)")
			}
			fmt.Fprintf(out, "indexed:  %d ticks, %d moves\n\n", sum.TicksIndexed, sum.MovesIndexed)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "AGENT\tMARKER\tMOVES\tCELLS\tCLAMPS\tLAST")
			markers := []rune(sum.Markers)
			for _, st := range stats {
				marker := "-"
				if st.AgentID >= 0 && st.AgentID < len(markers) {
					marker = string(markers[st.AgentID])
				}
				fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t(%d,%d)\n",
					st.AgentID, marker, st.Moves, st.CellsVisited, st.BoundsHits, st.LastX, st.LastY)
			}
			return tw.Flush()
		},
	}
}
