package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"crossref/internal/listing"
	"crossref/internal/matcher"
)

func newListingCommand(ctx *commandContext) *cobra.Command {
	listingCmd := &cobra.Command{
		Use:   "listing",
		Short: "Fetch Nebula listings through the cache and look up single videos",
	}

	listingCmd.AddCommand(newListingChannelCommand(ctx))
	listingCmd.AddCommand(newListingSearchCommand(ctx))
	listingCmd.AddCommand(newListingVideoCommand(ctx))

	return listingCmd
}

func newListingChannelCommand(ctx *commandContext) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "channel <nebula-channel>",
		Short: "List the newest videos of a Nebula channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.ensureEngine(cmd.Context())
			if err != nil {
				return err
			}
			videos, err := eng.NebulaCache.Ensure(cmd.Context(), listing.KindChannel, strings.TrimSpace(args[0]), count)
			if err != nil {
				return err
			}
			return printVideos(cmd, ctx, videos)
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 20, "Number of videos to list")
	return cmd
}

func newListingSearchCommand(ctx *commandContext) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "List Nebula search results for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.ensureEngine(cmd.Context())
			if err != nil {
				return err
			}
			query := matcher.Normalize(strings.Join(args, " "))
			if query == "" {
				return fmt.Errorf("search query is empty")
			}
			videos, err := eng.NebulaCache.Ensure(cmd.Context(), listing.KindSearch, query, count)
			if err != nil {
				return err
			}
			return printVideos(cmd, ctx, videos)
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 20, "Number of results to list")
	return cmd
}

func newListingVideoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "video <slug>",
		Short: "Show one Nebula video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.ensureEngine(cmd.Context())
			if err != nil {
				return err
			}
			ep, err := eng.Nebula.Video(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, ep)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Title: %s\n", ep.Title)
			fmt.Fprintf(out, "Slug: %s\n", ep.Slug)
			if ep.ChannelSlug != "" {
				fmt.Fprintf(out, "Channel: %s\n", ep.ChannelSlug)
			}
			if !ep.PublishedAt.IsZero() {
				fmt.Fprintf(out, "Published: %s\n", ep.PublishedAt.Format(time.DateOnly))
			}
			fmt.Fprintf(out, "Link: %s/videos/%s\n", eng.Config.Nebula.LinkBaseURL, ep.Slug)
			return nil
		},
	}
}

func printVideos(cmd *cobra.Command, ctx *commandContext, videos []listing.Video) error {
	if ctx.jsonOutput() {
		if videos == nil {
			videos = []listing.Video{}
		}
		return writeJSON(cmd, videos)
	}
	if len(videos) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No videos")
		return nil
	}
	rows := make([][]string, 0, len(videos))
	for i, v := range videos {
		published := ""
		if !v.PublishedAt.IsZero() {
			published = v.PublishedAt.UTC().Format(time.DateOnly)
		}
		rows = append(rows, []string{fmt.Sprintf("%d", i+1), v.ID, published, v.Title})
	}
	printTable(cmd.OutOrStdout(),
		[]string{"#", "ID", "Published", "Title"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft})
	return nil
}
