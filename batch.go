package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chaos-io/rembg-tool/util"
	"github.com/chaos-io/rembg-tool/util/crawler"
	nhttp "github.com/chaos-io/rembg-tool/util/http"
)

func newBatchCmd(a *app) *cobra.Command {
	var page, match, outDir string
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Remove backgrounds of all images found on a web page",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cli := nhttp.NewHTTPClient()

			urls, err := crawler.ImageURLs(ctx, cli, page, match)
			if err != nil {
				return err
			}
			slog.Info("images found", "page", page, "count", len(urls))

			var failed int
			used := make(map[string]int, len(urls))
			for i, u := range urls {
				if err := ctx.Err(); err != nil {
					return err
				}

				name := crawler.FileName(u)
				if name == "" {
					name = fmt.Sprintf("image_%03d", i)
				}
				output := filepath.Join(outDir, uniqueName(used, name)+"_nobg.png")

				data, err := util.DownloadImage(ctx, cli, u)
				if err == nil {
					err = a.removeTo(ctx, data, output)
				}
				if err != nil {
					failed++
					slog.Warn("skip image", "url", u, "error", err)
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), output)
			}

			if failed > 0 && failed == len(urls) {
				return errors.New("all images failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&page, "page", "", "page url to collect <img> sources from")
	cmd.Flags().StringVar(&match, "match", "", "only keep image urls containing this substring")
	cmd.Flags().StringVarP(&outDir, "output-dir", "o", "./output", "output directory")
	_ = cmd.MarkFlagRequired("page")
	return cmd
}

// uniqueName 同名图片依次加上 _1、_2 后缀
func uniqueName(used map[string]int, name string) string {
	n, ok := used[name]
	used[name] = n + 1
	if !ok {
		return name
	}
	candidate := fmt.Sprintf("%s_%d", name, n)
	if _, taken := used[candidate]; taken {
		return uniqueName(used, name)
	}
	used[candidate] = 1
	return candidate
}
