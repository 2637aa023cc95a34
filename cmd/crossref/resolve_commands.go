package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"crossref/internal/listing"
	"crossref/internal/matcher"
	"crossref/internal/resolve"
	"crossref/internal/server"
	"crossref/internal/services"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	resolveCmd := &cobra.Command{
		Use:   "resolve",
		Short: "Match titles and resolve videos between YouTube and Nebula",
	}

	resolveCmd.AddCommand(newResolveChannelCommand(ctx))
	resolveCmd.AddCommand(newResolveSearchCommand(ctx))
	resolveCmd.AddCommand(newResolveNebulaCommand(ctx))
	resolveCmd.AddCommand(newResolveYouTubeCommand(ctx))
	resolveCmd.AddCommand(newResolveBatchCommand(ctx))

	return resolveCmd
}

func newResolveChannelCommand(ctx *commandContext) *cobra.Command {
	var count int
	var verbose bool

	cmd := &cobra.Command{
		Use:   "channel <nebula-channel> <title>",
		Short: "Match a title against the newest videos of a Nebula channel",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.ensureEngine(cmd.Context())
			if err != nil {
				return err
			}
			opCtx := services.WithOperation(cmd.Context(), "match_channel")
			result, err := eng.Resolver.MatchOnChannel(opCtx, args[0], args[1], count)
			if err != nil {
				return err
			}
			resp := server.MatchResponse{Match: result}
			if verbose {
				resp.Ranking, err = eng.Resolver.Explain(opCtx, listing.KindChannel, args[0], args[1], count)
				if err != nil {
					return err
				}
			}
			return printMatch(cmd, ctx, resp)
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 0, "Number of newest videos to consider (default from config)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show every candidate with its score")
	return cmd
}

func newResolveSearchCommand(ctx *commandContext) *cobra.Command {
	var count int
	var verbose bool

	cmd := &cobra.Command{
		Use:   "search <title>",
		Short: "Match a title against Nebula's global search",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.ensureEngine(cmd.Context())
			if err != nil {
				return err
			}
			title := strings.Join(args, " ")
			opCtx := services.WithOperation(cmd.Context(), "match_search")
			result, err := eng.Resolver.MatchBySearch(opCtx, title, count)
			if err != nil {
				return err
			}
			resp := server.MatchResponse{Match: result}
			if verbose {
				resp.Ranking, err = eng.Resolver.Explain(opCtx, listing.KindSearch, "", title, count)
				if err != nil {
					return err
				}
			}
			return printMatch(cmd, ctx, resp)
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 0, "Number of search results to consider (default from config)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show every candidate with its score")
	return cmd
}

func newResolveNebulaCommand(ctx *commandContext) *cobra.Command {
	var minConfidence float64

	cmd := &cobra.Command{
		Use:   "nebula <youtube-channel-id> <title>",
		Short: "Find the Nebula counterpart of a YouTube video",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.ensureEngine(cmd.Context())
			if err != nil {
				return err
			}
			threshold := eng.Config.Resolution.MinConfidence
			if cmd.Flags().Changed("min") {
				if minConfidence < 0 || minConfidence > 1 {
					return fmt.Errorf("--min must be between 0 and 1")
				}
				threshold = minConfidence
			}
			res, err := eng.Resolver.ResolveNebula(cmd.Context(), args[0], args[1], threshold)
			if err != nil {
				return err
			}
			return printResolution(cmd, ctx, res)
		},
	}

	cmd.Flags().Float64Var(&minConfidence, "min", 0, "Minimum confidence a tier must reach (default from config)")
	return cmd
}

func newResolveYouTubeCommand(ctx *commandContext) *cobra.Command {
	var creator string
	var slug string

	cmd := &cobra.Command{
		Use:   "youtube <title>",
		Short: "Find the YouTube upload of a Nebula video",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(creator) == "" && strings.TrimSpace(slug) == "" {
				return fmt.Errorf("--creator or --nebula is required")
			}
			eng, err := ctx.ensureEngine(cmd.Context())
			if err != nil {
				return err
			}
			res, err := eng.Resolver.ResolveYouTube(cmd.Context(), creator, slug, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printResolution(cmd, ctx, res)
		},
	}

	cmd.Flags().StringVar(&creator, "creator", "", "Creator name from the registry")
	cmd.Flags().StringVar(&slug, "nebula", "", "Nebula channel slug of the creator")
	return cmd
}

// batchResult is one line of resolve batch output, in input order.
type batchResult struct {
	Line       int                 `json:"line"`
	Channel    string              `json:"channel"`
	Title      string              `json:"title"`
	Resolution *resolve.Resolution `json:"resolution,omitempty"`
	Error      string              `json:"error,omitempty"`
	Kind       string              `json:"kind,omitempty"`
}

func newResolveBatchCommand(ctx *commandContext) *cobra.Command {
	var inputPath string
	var concurrency int

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Resolve tab-separated \"channel-id<TAB>title\" lines from a file or stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.ensureEngine(cmd.Context())
			if err != nil {
				return err
			}
			var in io.Reader = cmd.InOrStdin()
			if path := strings.TrimSpace(inputPath); path != "" && path != "-" {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("open batch input: %w", err)
				}
				defer f.Close()
				in = f
			}
			results, err := readBatch(in)
			if err != nil {
				return err
			}
			limit := concurrency
			if limit <= 0 {
				limit = eng.Config.Resolution.BatchConcurrency
			}
			threshold := eng.Config.Resolution.MinConfidence
			if err := runBatch(cmd.Context(), limit, results, func(ctx context.Context, channel, title string) (resolve.Resolution, error) {
				return eng.Resolver.ResolveNebula(ctx, channel, title, threshold)
			}); err != nil {
				return err
			}
			return printBatch(cmd, ctx, results)
		},
	}

	cmd.Flags().StringVarP(&inputPath, "file", "f", "", "Input file (default stdin)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Parallel resolutions (default from config)")
	return cmd
}

func readBatch(in io.Reader) ([]batchResult, error) {
	var results []batchResult
	scanner := bufio.NewScanner(in)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		channel, title, ok := strings.Cut(line, "\t")
		result := batchResult{Line: lineNo, Channel: strings.TrimSpace(channel), Title: strings.TrimSpace(title)}
		if !ok || result.Channel == "" || result.Title == "" {
			result.Error = "expected \"channel-id<TAB>title\""
			result.Kind = services.Kind(services.ErrInvalidInput)
		}
		results = append(results, result)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read batch input: %w", err)
	}
	return results, nil
}

// runBatch resolves every well-formed entry with at most limit in flight.
// Per-line failures are recorded on the entry; only cancellation aborts.
func runBatch(ctx context.Context, limit int, results []batchResult, resolveFn func(context.Context, string, string) (resolve.Resolution, error)) error {
	group, groupCtx := errgroup.WithContext(ctx)
	if limit > 0 {
		group.SetLimit(limit)
	}
	for i := range results {
		if results[i].Error != "" {
			continue
		}
		entry := &results[i]
		group.Go(func() error {
			res, err := resolveFn(groupCtx, entry.Channel, entry.Title)
			if err != nil {
				if groupCtx.Err() != nil {
					return groupCtx.Err()
				}
				entry.Error = err.Error()
				entry.Kind = services.Kind(err)
				return nil
			}
			entry.Resolution = &res
			return nil
		})
	}
	return group.Wait()
}

func printMatch(cmd *cobra.Command, ctx *commandContext, resp server.MatchResponse) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, resp)
	}
	out := cmd.OutOrStdout()
	if resp.Match.VideoID == "" {
		fmt.Fprintln(out, "No candidates")
	} else {
		fmt.Fprintf(out, "Match: %s (confidence %s)\n", resp.Match.VideoID, formatConfidence(resp.Match.Confidence))
	}
	if len(resp.Ranking) > 0 {
		printRanking(cmd, resp.Ranking)
	}
	return nil
}

func printRanking(cmd *cobra.Command, ranking []matcher.Ranked) {
	rows := make([][]string, 0, len(ranking))
	for i, r := range ranking {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			formatConfidence(r.Confidence),
			formatConfidence(r.TokenOverlap),
			r.Video.ID,
			r.Video.Title,
		})
	}
	printTable(cmd.OutOrStdout(),
		[]string{"#", "Score", "Overlap", "ID", "Title"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignLeft, alignLeft})
}

func printResolution(cmd *cobra.Command, ctx *commandContext, res resolve.Resolution) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, server.ResolveResponse{Resolution: res})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Link: %s\n", res.Link)
	fmt.Fprintf(out, "Kind: %s (tier %s)\n", res.Kind, res.Tier)
	if res.VideoID != "" {
		fmt.Fprintf(out, "Video: %s\n", res.VideoID)
	}
	fmt.Fprintf(out, "Confidence: %s\n", formatConfidence(res.Confidence))
	if res.Creator != "" {
		fmt.Fprintf(out, "Creator: %s\n", res.Creator)
	}
	return nil
}

func printBatch(cmd *cobra.Command, ctx *commandContext, results []batchResult) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, results)
	}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		link, tier, confidence := "", "", ""
		if r.Resolution != nil {
			link = r.Resolution.Link
			tier = r.Resolution.Tier
			confidence = formatConfidence(r.Resolution.Confidence)
		} else {
			link = "error: " + r.Error
		}
		rows = append(rows, []string{fmt.Sprintf("%d", r.Line), r.Channel, r.Title, tier, confidence, link})
	}
	printTable(cmd.OutOrStdout(),
		[]string{"Line", "Channel", "Title", "Tier", "Confidence", "Link"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft})
	return nil
}
