package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const versionTagline = "every return leaves a footprint"

func newVersionCmd(a *app) *cobra.Command {
	var showBuild bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show ertrace version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := color.New(color.FgCyan, color.Bold)
			tag := color.New(color.FgHiBlack, color.Italic)
			if a.useColor(cmd) {
				name.EnableColor()
				tag.EnableColor()
			} else {
				name.DisableColor()
				tag.DisableColor()
			}

			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(out, "%s %s\n%s\n", name.Sprint("ertrace"), version, tag.Sprint(versionTagline)); err != nil {
				return err
			}
			if !showBuild {
				return nil
			}
			_, err := fmt.Fprintf(out, "go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			if err != nil {
				return err
			}
			if info, ok := debug.ReadBuildInfo(); ok {
				for _, s := range info.Settings {
					if s.Key == "vcs.revision" || s.Key == "vcs.time" {
						if _, err := fmt.Fprintf(out, "%s: %s\n", s.Key, s.Value); err != nil {
							return err
						}
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showBuild, "build", false, "include toolchain and VCS details")
	return cmd
}
