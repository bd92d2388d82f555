package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"cilscan/internal/engine"
	"cilscan/internal/rules"
)

func rulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the built-in rules by category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all := rules.All(&engine.Collector{})
			enabled := make(map[string]bool)
			for _, r := range rules.Select(all, cfg.Rules.Disabled) {
				enabled[r.CheckID()] = true
			}
			fmt.Fprintln(cmd.OutOrStdout(), ruleTree(all, enabled).String())
			return nil
		},
	}
}

func ruleTree(all []engine.Rule, enabled map[string]bool) treeprint.Tree {
	root := treeprint.New()
	root.SetValue("rules")
	branches := make(map[string]treeprint.Tree)
	for _, r := range all {
		cat := category(r.CheckID())
		b, ok := branches[cat]
		if !ok {
			b = root.AddBranch(cat)
			branches[cat] = b
		}
		meta := r.CheckID()
		if !enabled[r.CheckID()] {
			meta += " disabled"
		}
		b.AddMetaNode(meta, r.Name())
	}
	return root
}

// category derives a rule's category from its check ID prefix.
func category(checkID string) string {
	prefix := strings.TrimRight(checkID, "0123456789")
	switch prefix {
	case "C":
		return "correctness"
	case "R":
		return "reliability"
	case "PO":
		return "portability"
	case "D":
		return "design"
	case "P":
		return "performance"
	case "S", "MS":
		return "security"
	}
	return "other"
}
