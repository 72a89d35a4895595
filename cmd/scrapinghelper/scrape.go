package main

import (
	"fmt"
	"net/url"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/scrapinghelper/scrapinghelper/pkg/extract"
)

const rotateUsage = "Proxy rotation: no_proxy, keep, next or random (default from config)"

func (a *app) fetchCmd() *cobra.Command {
	var asMarkdown bool
	var selector string
	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Fetches a page and prints a summary, or its content as Markdown.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rot, err := a.rotation(cmd)
			if err != nil {
				return err
			}
			scraper, cleanup, err := a.newScraper(cmd.Context(), rot, false)
			if err != nil {
				return err
			}
			defer cleanup()

			page, err := scraper.Get(cmd.Context(), args[0], rot)
			if err != nil {
				return err
			}

			if asMarkdown {
				sel := page.Doc.Selection
				if selector != "" {
					sel = page.Doc.Find(selector)
				}
				domain := ""
				if u, err := url.Parse(page.FinalURL); err == nil {
					domain = u.Host
				}
				fmt.Fprintln(a.out, extract.Markdown(sel, domain))
				return nil
			}

			t := a.newTable()
			t.AppendRows([]table.Row{
				{"url", page.URL},
				{"final url", page.FinalURL},
				{"status", page.StatusCode},
				{"bytes", len(page.Body)},
				{"title", orDash(page.Doc.Find("title").First().Text())},
				{"proxy", orDash(page.Proxy.URL())},
				{"user agent", orDash(page.UserAgent)},
			})
			t.Render()
			return nil
		},
	}
	cmd.Flags().String("rotate", "", rotateUsage)
	cmd.Flags().BoolVar(&asMarkdown, "markdown", false, "Print the page (or --selector) as Markdown")
	cmd.Flags().StringVar(&selector, "selector", "", "CSS selector for --markdown")
	return cmd
}

func (a *app) linksCmd() *cobra.Command {
	var selector string
	var filter extract.LinkFilter
	cmd := &cobra.Command{
		Use:   "links <url>",
		Short: "Lists the links of a page, optionally filtered by basename or content.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rot, err := a.rotation(cmd)
			if err != nil {
				return err
			}
			scraper, cleanup, err := a.newScraper(cmd.Context(), rot, false)
			if err != nil {
				return err
			}
			defer cleanup()

			page, err := scraper.Get(cmd.Context(), args[0], rot)
			if err != nil {
				return err
			}
			base, err := url.Parse(page.FinalURL)
			if err != nil {
				return err
			}
			links, err := extract.Links(page.Doc, base, selector, filter)
			if err != nil {
				return err
			}

			t := a.newTable()
			t.AppendHeader(table.Row{"Text", "URL"})
			for _, l := range links {
				t.AppendRow(table.Row{orDash(l.Text), l.URL.String()})
			}
			t.AppendFooter(table.Row{"", fmt.Sprintf("%d links", len(links))})
			t.Render()
			return nil
		},
	}
	cmd.Flags().String("rotate", "", rotateUsage)
	cmd.Flags().StringVar(&selector, "selector", extract.DefaultLinkSelector, "CSS selector of link containers")
	cmd.Flags().StringSliceVar(&filter.StartsWith, "startswith", nil, "Keep links whose basename starts with any of these")
	cmd.Flags().StringSliceVar(&filter.EndsWith, "endswith", nil, "Keep links whose basename ends with any of these")
	cmd.Flags().StringSliceVar(&filter.Containing, "containing", nil, "Keep links whose URL contains any of these")
	cmd.Flags().StringSliceVar(&filter.Exclude, "exclude", nil, "Drop links matching any of these regex patterns")
	return cmd
}

func (a *app) downloadCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "download <url>...",
		Short: "Downloads files, recording them in the ledger when download.skip_existing is set.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rot, err := a.rotation(cmd)
			if err != nil {
				return err
			}
			if out != "" {
				a.cfg.Download.OutputDir = out
			}
			scraper, cleanup, err := a.newScraper(cmd.Context(), rot, a.cfg.Download.SkipExisting)
			if err != nil {
				return err
			}
			defer cleanup()

			results, dlErr := scraper.DownloadAll(cmd.Context(), args, rot)

			t := a.newTable()
			t.AppendHeader(table.Row{"URL", "Path", "Bytes", "SHA256", "Result"})
			for i, res := range results {
				if res == nil {
					t.AppendRow(table.Row{args[i], "-", "-", "-", invalidMark("failed")})
					continue
				}
				status := validMark("downloaded")
				if res.Skipped {
					status = validMark("skipped")
				}
				t.AppendRow(table.Row{res.URL, res.Path, res.Bytes, res.SHA256, status})
			}
			t.Render()
			return dlErr
		},
	}
	cmd.Flags().String("rotate", "", rotateUsage)
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output directory (default from config)")
	return cmd
}
