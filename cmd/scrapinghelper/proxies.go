package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/scrapinghelper/scrapinghelper/pkg/descriptor"
	"github.com/scrapinghelper/scrapinghelper/pkg/proxypool"
)

func (a *app) proxiesCmd() *cobra.Command {
	var source string
	var count int

	cmd := &cobra.Command{
		Use:   "proxies",
		Short: "Loads a proxy pool and lists or rotates through it.",
	}
	cmd.PersistentFlags().StringVar(&source, "source", "", "file://, http(s):// or comma-separated proxies (default from config)")

	list := &cobra.Command{
		Use:   "list",
		Short: "Lists every pool entry with its parsed endpoint.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := a.newPool(cmd.Context(), source)
			if err != nil {
				return err
			}
			t := a.newTable()
			t.AppendHeader(table.Row{"#", "Entry", "Result", "Endpoint", "Class"})
			for i, p := range pool.Descriptors() {
				t.AppendRow(table.Row{i + 1, p.Raw, mark(p.IsValid), orDash(p.URL()), p.Class.String()})
			}
			t.AppendFooter(table.Row{"", fmt.Sprintf("%d entries", pool.Len())})
			t.Render()
			return nil
		},
	}

	rotate := func(use string, rot proxypool.Rotation) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: fmt.Sprintf("Prints endpoints chosen with the %s rotation.", rot),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				pool, err := a.newPool(cmd.Context(), source)
				if err != nil {
					return err
				}
				for i := 0; i < max(count, 1); i++ {
					var p *descriptor.Proxy
					if p, err = pool.Select(rot); err != nil {
						return err
					}
					fmt.Fprintln(a.out, orDash(p.URL()))
				}
				return nil
			},
		}
	}

	cmd.PersistentFlags().IntVarP(&count, "count", "n", 1, "Number of selections for next/random")
	cmd.AddCommand(list, rotate("next", proxypool.RotateNext), rotate("random", proxypool.RotateRandom))
	return cmd
}
