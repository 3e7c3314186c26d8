package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	addTargetFlags(listCmd.Flags())
	addFilterFlags(listCmd.Flags())
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the scenarios that run would execute",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		fx, err := loadFixtures(cfg)
		if err != nil {
			return err
		}
		cases, err := selectCases(cfg, fx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, c := range cases {
			if len(c.Tags) > 0 {
				fmt.Fprintf(out, "%s [%s]\n", c.FullName(), strings.Join(c.Tags, ", "))
			} else {
				fmt.Fprintln(out, c.FullName())
			}
		}
		fmt.Fprintf(out, "%d scenario(s)\n", len(cases))
		return nil
	},
}
