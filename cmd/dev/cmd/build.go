package cmd

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gophertribe/devtool/build"
)

const (
	binary        = "dist/bushal"
	mainPackage   = "./cmd/bushal"
	configPackage = "github.com/mklimuk/bushal/pkg/config"
	builderImage  = "gophertribe/gobuild:1.25-bookworm"
)

// boards maps board names to their GOOS/GOARCH pair.
var boards = map[string][2]string{
	"rpi":    {"linux", "arm64"},
	"rpi32":  {"linux", "arm"},
	"nanopi": {"linux", "arm"},
}

func BuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the bushal cli",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			os, _ := flags.GetString("os")
			arch, _ := flags.GetString("arch")
			version, _ := flags.GetString("version")
			crossOs, _ := flags.GetString("cross-os")
			crossArch, _ := flags.GetString("cross-arch")
			if board, _ := flags.GetString("board"); board != "" {
				target, ok := boards[board]
				if !ok {
					return fmt.Errorf("unknown board %q", board)
				}
				crossOs, crossArch = target[0], target[1]
			}

			// native build, possibly inside the builder container
			if os == runtime.GOOS && arch == runtime.GOARCH {
				if crossOs != "" && crossArch != "" {
					os = crossOs
					arch = crossArch
				}
				slog.Info("building", "os", os, "arch", arch, "version", version)
				return build.GoBuild(binary, mainPackage, build.GoBuildOpts{
					Version:       version,
					InjectVersion: true,
					ConfigPackage: configPackage,
					// hid needs cgo
					EnableCgo: true,
					Arch:      arch,
					OS:        os,
				})
			}

			noCache, err := flags.GetBool("no-cache")
			if err != nil {
				return fmt.Errorf("could not get no-cache flag: %w", err)
			}
			return build.Docker(cmd.Context(), fmt.Sprintf("./dev-%s-%s", os, arch), []string{"build", "--version", version, "--cross-os", crossOs, "--cross-arch", crossArch}, build.DockerBuildOpts{
				NoCache: noCache,
				Image:   builderImage,
			})
		},
	}
	cmd.Flags().Bool("no-cache", false, "do not use cache when building the app")
	cmd.Flags().String("version", "latest", "version of the cli")
	cmd.Flags().String("os", runtime.GOOS, "os to build for")
	cmd.Flags().String("arch", runtime.GOARCH, "arch to build for")
	cmd.Flags().String("cross-os", "", "os to cross-compile for")
	cmd.Flags().String("cross-arch", "", "arch to cross-compile for")
	cmd.Flags().String("board", "", "cross-compile for a board (rpi, rpi32, nanopi)")

	return cmd
}
