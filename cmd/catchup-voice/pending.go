package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kaivalyagandhi/catchup-app-sub002/internal/store"
)

func NewPendingCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List locally saved notes awaiting upload",
		RunE: func(cmd *cobra.Command, args []string) error {
			notes, err := store.New(deps.Config.Store.DatabasePath)
			if err != nil {
				return fmt.Errorf("opening note store: %w", err)
			}
			defer notes.Close()

			pending, err := notes.List()
			if err != nil {
				return fmt.Errorf("listing pending notes: %w", err)
			}

			if len(pending) == 0 {
				fmt.Println("No pending notes")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tDURATION\tTRANSCRIPT")
			for _, n := range pending {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					n.ID,
					n.CreatedAt.Format(time.RFC3339),
					n.Duration.Round(time.Second),
					excerpt(n.Transcript, 48),
				)
			}
			return w.Flush()
		},
	}

	return cmd
}

// excerpt returns the first line of text shortened to max runes.
func excerpt(text string, max int) string {
	if text == "" {
		return "(empty)"
	}
	for i, r := range text {
		if r == '\n' {
			text = text[:i]
			break
		}
	}
	runes := []rune(text)
	if len(runes) > max {
		return string(runes[:max-1]) + "…"
	}
	return text
}
