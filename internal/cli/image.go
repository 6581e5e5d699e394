package cli

import (
	"context"
	"errors"
	"fmt"
	"image/jpeg"

	ashfetch "github.com/Borislavv/go-ash-fetch"
	"github.com/Borislavv/go-ash-fetch/model"
	"github.com/spf13/cobra"
)

func newImageCommand(flags *globalFlags) *cobra.Command {
	var (
		width, height float64
		out           string
		quality       int
	)

	cmd := &cobra.Command{
		Use:   "image <url>",
		Short: "Fetch an image downsampled for a display size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withClient(cmd, func(ctx context.Context, c *ashfetch.Client) error {
				if c.Images() == nil {
					return errors.New("image pipeline is not configured")
				}
				img, err := c.Images().FetchImage(ctx, args[0], model.NewSize(width, height))
				if err != nil {
					return err
				}

				if out == "" {
					b := img.Bounds()
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %dx%d\n", args[0], b.Dx(), b.Dy())
					return err
				}
				w, closeFn, err := output(cmd, out)
				if err != nil {
					return err
				}
				if err = jpeg.Encode(w, img, &jpeg.Options{Quality: quality}); err != nil {
					_ = closeFn()
					return fmt.Errorf("encode %s: %w", out, err)
				}
				return closeFn()
			})
		},
	}
	cmd.Flags().Float64Var(&width, "width", 100, "target width in points")
	cmd.Flags().Float64Var(&height, "height", 100, "target height in points")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the image as jpeg to this file (- for stdout)")
	cmd.Flags().IntVar(&quality, "quality", 90, "jpeg quality of --out")
	return cmd
}
