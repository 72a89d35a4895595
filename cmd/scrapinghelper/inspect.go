package main

import (
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/scrapinghelper/scrapinghelper/pkg/descriptor"
	"github.com/scrapinghelper/scrapinghelper/pkg/grammar"
)

// errInvalidInput is returned by validate when at least one argument fails
var errInvalidInput = errors.New("invalid input")

func (a *app) validateCmd() *cobra.Command {
	var publicOnly bool
	cmd := &cobra.Command{
		Use:       "validate url|proxy <value>...",
		Short:     "Checks URLs or proxy strings against the grammar.",
		Args:      cobra.MinimumNArgs(2),
		ValidArgs: []string{"url", "proxy"},
		RunE: func(cmd *cobra.Command, args []string) error {
			check := grammar.IsValidURL
			switch args[0] {
			case "url":
			case "proxy":
				check = grammar.IsValidProxy
			default:
				return fmt.Errorf("unknown kind %q, want url or proxy", args[0])
			}

			t := a.newTable()
			t.AppendHeader(table.Row{"Input", "Result"})
			failed := 0
			for _, value := range args[1:] {
				ok := check(value, publicOnly)
				if !ok {
					failed++
				}
				t.AppendRow(table.Row{value, mark(ok)})
			}
			t.Render()
			if failed > 0 {
				return fmt.Errorf("%w: %d of %d", errInvalidInput, failed, len(args)-1)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&publicOnly, "public", false, "Reject private and loopback hosts")
	return cmd
}

func (a *app) parseCmd() *cobra.Command {
	var noQuote bool
	var fallback string
	cmd := &cobra.Command{
		Use:   "parse url|proxy <value>",
		Short: "Shows the decomposed descriptor of a URL or proxy string.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := a.newTable()
			t.AppendHeader(table.Row{"Field", "Value"})
			switch args[0] {
			case "url":
				var opts []descriptor.URLOption
				if noQuote {
					opts = append(opts, descriptor.WithoutQuote())
				}
				u := descriptor.ParseURL(args[1], opts...)
				t.AppendRows([]table.Row{
					{"raw", u.Raw},
					{"normalized", u.Normalized},
					{"valid", mark(u.IsValid)},
					{"scheme", orDash(u.Scheme)},
					{"netloc", orDash(u.Netloc)},
					{"username", orDash(u.Username)},
					{"password", orDash(u.Password)},
					{"hostname", orDash(u.Hostname)},
					{"port", portString(u.Port, u.HasPort)},
					{"path", orDash(u.Path)},
					{"params", orDash(u.Params)},
					{"query", orDash(u.Query)},
					{"fragment", orDash(u.Fragment)},
					{"basename", orDash(u.Basename)},
					{"class", u.Class.String()},
				})
			case "proxy":
				if fallback == "" {
					fallback = a.cfg.Proxies.SchemeFallback
				}
				p, err := descriptor.ProxyParse(args[1], fallback)
				if err != nil {
					p = descriptor.ParseProxy(args[1])
					a.log.Debugf("Strict proxy parse failed: %v", err)
				}
				t.AppendRows([]table.Row{
					{"raw", p.Raw},
					{"valid", mark(p.IsValid)},
					{"scheme", orDash(p.Scheme)},
					{"netloc", orDash(p.Netloc)},
					{"username", orDash(p.Username)},
					{"password", orDash(p.Password)},
					{"hostname", orDash(p.Hostname)},
					{"port", portString(p.Port, p.HasPort)},
					{"endpoint", orDash(p.URL())},
					{"class", p.Class.String()},
				})
			default:
				return fmt.Errorf("unknown kind %q, want url or proxy", args[0])
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&noQuote, "no-quote", false, "Keep the URL exactly as given instead of percent-encoding it")
	cmd.Flags().StringVar(&fallback, "scheme-fallback", "", "Scheme for proxies given without one (default from config)")
	return cmd
}
