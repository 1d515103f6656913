package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/chaos-io/rembg-tool/imaging"
	"github.com/chaos-io/rembg-tool/tool"
	"github.com/chaos-io/rembg-tool/util"
	"github.com/chaos-io/rembg-tool/util/crawler"
	nhttp "github.com/chaos-io/rembg-tool/util/http"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func newRemoveCmd(a *app) *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove the background of one image (local file or http(s) url)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" {
				output = defaultOutput(input)
			}
			data, err := util.ReadImage(cmd.Context(), nhttp.NewHTTPClient(), input)
			if err != nil {
				return err
			}
			if err := a.removeTo(cmd.Context(), data, output); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "input image path or url")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output png path (default <input>_nobg.png)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// removeTo 调用 remove_background 并把结果写到 output
func (a *app) removeTo(ctx context.Context, data []byte, output string) error {
	args, err := json.Marshal(tool.RemoveBackgroundArgs{ImageBase64: imaging.EncodeBase64(data)})
	if err != nil {
		return err
	}

	res, err := a.registry.Execute(ctx, tool.RemoveBackgroundName, args)
	if err != nil {
		return err
	}

	png, err := imaging.DecodeBase64(res.Content.Base64)
	if err != nil {
		return err
	}
	if err := util.WriteFile(output, png); err != nil {
		return err
	}
	slog.Info(res.Message, "output", output, "bytes", len(png))
	return nil
}

func defaultOutput(input string) string {
	var name string
	if util.IsURL(input) {
		name = crawler.FileName(input)
	} else {
		base := filepath.Base(input)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if name == "" || name == "." {
		name = "output"
	}
	return name + "_nobg.png"
}
