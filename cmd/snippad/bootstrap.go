package main

import (
	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/snippad/bootstrap"
)

func newBootstrapCmd() *cobra.Command {
	var outputDir string
	var overwrite bool
	var imageTag string
	var sets []string
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Generate a container deployment bundle with a Piston engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			opts := bootstrap.Options{ImageTag: imageTag}
			for _, raw := range sets {
				override, err := bootstrap.ParseOverride(raw)
				if err != nil {
					return err
				}
				opts.Overrides = append(opts.Overrides, override)
			}
			paths, err := bootstrap.WriteBootstrap(outputDir, overwrite, opts)
			if err != nil {
				return err
			}
			logger.Info("bootstrap wrote", "path", paths.ConfigPath, "name", "config-for-container.yaml")
			logger.Info("bootstrap wrote", "path", paths.ComposePath, "name", "docker-compose.yaml")
			logger.Info("bootstrap wrote", "path", paths.ContainerfilePath, "name", "Containerfile.snippad")
			logger.Info("bootstrap wrote", "path", paths.DropDir, "name", "drop/")
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output", "o", "snippad-deploy", "output directory")
	cmd.Flags().BoolVar(&overwrite, "force", false, "overwrite existing files")
	cmd.Flags().StringVar(&imageTag, "tag", "", "snippad image tag (defaults to the build version)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "override a container config value (path=value)")
	return cmd
}
