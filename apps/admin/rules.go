package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/stipend/core/valuation"
)

var errConflictingRules = errors.New("conflicting rate rules")

func (cli *commandLine) rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect the valuation rules",
	}
	cmd.AddCommand(cli.rulesAuditCmd())
	return cmd
}

func (cli *commandLine) rulesAuditCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "audit [rules-file]",
		Short: "List the rate rules that can never match because an earlier rule has the same key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rates := cli.engine.Rates
			if len(args) > 0 {
				rules, err := valuation.LoadRules(args[0])
				if err != nil {
					return err
				}
				rates = valuation.NewEngine(rules).Rates
			}

			out := cmd.OutOrStdout()
			shadowed := rates.Shadowed()
			if len(shadowed) == 0 {
				fmt.Fprintln(out, "No shadowed rate rules.")
				return nil
			}

			conflicts := 0
			for _, sr := range shadowed {
				status := "duplicate"
				if sr.Conflicting {
					status = "CONFLICT"
					conflicts++
				}
				fmt.Fprintf(out, "%-9s %s %dh %s fellow=%s: %s shadowed by %s\n",
					status, sr.Rule.Position, sr.Rule.WeeklyHours, sr.Rule.EducationLevel, sr.Rule.FultonFellow,
					sr.Rule.Amount.StringFixed(2), sr.Winner.Amount.StringFixed(2))
			}
			fmt.Fprintf(out, "%d shadowed, %d conflicting.\n", len(shadowed), conflicts)

			if strict && conflicts > 0 {
				return errConflictingRules
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when a shadowed rule disagrees with the rule that wins")
	return cmd
}
