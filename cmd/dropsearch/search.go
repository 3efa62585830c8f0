package main

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/dshills/dropsearch/internal/config"
	"github.com/dshills/dropsearch/internal/logging"
	"github.com/dshills/dropsearch/pkg/types"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	pathStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	highlightStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	infoStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
)

var emphasis = regexp.MustCompile(`<em>(.*?)</em>`)

func newSearchCmd() *cobra.Command {
	var (
		fileTypes []string
		page      int
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index from the command line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(false, "stderr")
			if err != nil {
				return err
			}
			defer func() { _ = logging.Sync() }()

			// Bleve holds an exclusive file lock on its index
			a, err := openApp(cfg, appOptions{exclusive: cfg.Index.Backend == config.BackendBleve})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if err := a.ensureSchema(ctx); err != nil {
				return err
			}

			resp, err := a.searcher.Search(ctx, types.SearchQuery{
				Q:         strings.Join(args, " "),
				Page:      page,
				Limit:     limit,
				FileTypes: fileTypes,
			})
			if err != nil {
				return err
			}

			renderResults(cmd.OutOrStdout(), resp)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&fileTypes, "type", nil, "restrict to file types (e.g. pdf,docx)")
	cmd.Flags().IntVar(&page, "page", 1, "result page")
	cmd.Flags().IntVar(&limit, "limit", types.DefaultPageSize, "results per page")
	return cmd
}

func renderResults(w io.Writer, resp *types.SearchResponse) {
	if resp.Total == 0 {
		fmt.Fprintln(w, infoStyle.Render("No matching documents"))
		return
	}

	fmt.Fprintln(w, infoStyle.Render(fmt.Sprintf("%d results (page %d of %d)", resp.Total, resp.Page, resp.TotalPages)))
	for _, hit := range resp.Results {
		fmt.Fprintln(w)
		fmt.Fprintln(w, titleStyle.Render(hit.FileName))
		fmt.Fprintln(w, pathStyle.Render(fmt.Sprintf("%s  %s  %s  score %.2f",
			hit.SourcePath, formatSize(hit.FileSize), hit.ModifiedAt.Format(time.DateOnly), hit.Score)))
		for _, h := range hit.Highlights {
			fmt.Fprintln(w, "  "+renderHighlight(h))
		}
		if hit.URL != "" {
			fmt.Fprintln(w, pathStyle.Render("  "+hit.URL))
		}
	}
}

func renderHighlight(h string) string {
	return emphasis.ReplaceAllStringFunc(h, func(m string) string {
		return highlightStyle.Render(emphasis.FindStringSubmatch(m)[1])
	})
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
