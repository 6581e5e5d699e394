package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	ashfetch "github.com/Borislavv/go-ash-fetch"
	"github.com/Borislavv/go-ash-fetch/internal/transform"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var errPagesDisabled = errors.New("pages pipeline is not configured")

func newPageCommand(flags *globalFlags) *cobra.Command {
	var (
		size int
		out  string
	)

	cmd := &cobra.Command{
		Use:   "page <n>",
		Short: "Fetch one news page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("page number %q: %w", args[0], err)
			}
			return flags.withClient(cmd, func(ctx context.Context, c *ashfetch.Client) error {
				if c.Pages() == nil {
					return errPagesDisabled
				}
				data, err := c.Pages().FetchPage(ctx, n, size)
				if err != nil {
					return err
				}

				w, closeFn, err := output(cmd, out)
				if err != nil {
					return err
				}
				if _, err = fmt.Fprintf(w, "%s\n", data); err != nil {
					_ = closeFn()
					return err
				}
				return closeFn()
			})
		},
	}
	cmd.Flags().IntVar(&size, "size", 20, "page size")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the payload to this file instead of stdout")
	return cmd
}

func newPrefetchCommand(flags *globalFlags) *cobra.Command {
	var from, to, size, concurrency int

	cmd := &cobra.Command{
		Use:   "prefetch",
		Short: "Warm the disk tier with a range of news pages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if to < from {
				return fmt.Errorf("--to %d is before --from %d", to, from)
			}
			return flags.withClient(cmd, func(ctx context.Context, c *ashfetch.Client) error {
				if c.Pages() == nil {
					return errPagesDisabled
				}
				items := make([]int, to-from+1)

				g, gctx := errgroup.WithContext(ctx)
				g.SetLimit(max(concurrency, 1))
				for n := from; n <= to; n++ {
					g.Go(func() error {
						data, err := c.Pages().FetchPage(gctx, n, size)
						if err != nil {
							return fmt.Errorf("page %d: %w", n, err)
						}
						items[n-from] = transform.Items(data)
						return nil
					})
				}
				if err := g.Wait(); err != nil {
					return err
				}

				total := 0
				for _, v := range items {
					total += v
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "prefetched %d pages, %d items\n", len(items), total)
				return err
			})
		},
	}
	cmd.Flags().IntVar(&from, "from", 1, "first page")
	cmd.Flags().IntVar(&to, "to", 5, "last page")
	cmd.Flags().IntVar(&size, "size", 20, "page size")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "pages fetched in parallel")
	return cmd
}

func newPurgeCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove every persisted value of all pipelines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withClient(cmd, func(ctx context.Context, c *ashfetch.Client) error {
				if err := c.Purge(ctx); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "purged")
				return err
			})
		},
	}
}
