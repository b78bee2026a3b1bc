package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/snippad/internal/appconfig"
	"pkt.systems/snippad/schema"
)

func newRuntimesCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "runtimes",
		Short: "List runtimes offered by the remote execution service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			client, err := newPistonClient(cfg)
			if err != nil {
				return err
			}
			runtimes, err := client.Runtimes(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), runtimesTable(runtimes))
			return err
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	return cmd
}

func runtimesTable(runtimes []schema.Runtime) string {
	sorted := append([]schema.Runtime(nil), runtimes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Language != sorted[j].Language {
			return sorted[i].Language < sorted[j].Language
		}
		return sorted[i].Version < sorted[j].Version
	})
	rows := make([][]string, 0, len(sorted))
	for _, rt := range sorted {
		rows = append(rows, []string{rt.Language, rt.Version, strings.Join(rt.Aliases, ", ")})
	}
	return renderTable([]string{"LANGUAGE", "VERSION", "ALIASES"}, rows)
}
