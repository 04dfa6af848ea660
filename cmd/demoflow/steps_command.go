package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"demoflow/internal/steps"
)

func newStepsCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "steps",
		Short:       "Print the workflow step catalog",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), renderCatalog(steps.Default()))
			return nil
		},
	}
}

func renderCatalog(cat *steps.Catalog) string {
	starts := cat.GroupStarts()
	rows := make([][]string, 0, cat.Total())
	for idx, def := range cat.Flattened() {
		g, _ := cat.GroupOf(idx)
		group, _ := cat.Group(g)
		rows = append(rows, []string{strconv.Itoa(idx), group.Label, def.Label, def.Kind.Slug(), strconv.Itoa(starts[g])})
	}
	return renderTable(
		[]string{"#", "Group", "Step", "Kind", "Group Start"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight},
	)
}
