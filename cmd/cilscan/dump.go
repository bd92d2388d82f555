package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"cilscan/internal/il"
	"cilscan/internal/loader"
	"cilscan/internal/metadata"
	"cilscan/internal/signal"
)

func dumpCmd() *cobra.Command {
	var (
		strs    bool
		tree    bool
		methods string
	)

	cmd := &cobra.Command{
		Use:   "dump [flags] dump",
		Short: "Print method listings of a module dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mod, err := loader.Load(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if tree {
				fmt.Fprintln(w, outline(mod).String())
				return nil
			}
			var annotators []il.Annotator
			if strs {
				annotators = append(annotators, stringSignal)
			}
			writeListings(w, mod, methods, annotators...)
			return nil
		},
	}

	cmd.Flags().BoolVar(&strs, "strings", false, "annotate string literals with signal categories")
	cmd.Flags().BoolVar(&tree, "tree", false, "print the type and method outline instead of listings")
	cmd.Flags().StringVar(&methods, "method", "", "only methods whose full name contains this text")
	return cmd
}

// stringSignal annotates ldstr with the categories of its literal.
func stringSignal(inst il.Instruction) string {
	s, ok := inst.(*il.LoadString)
	if !ok {
		return ""
	}
	cats := signal.ClassifyString(s.Value)
	if len(cats) == 0 {
		return ""
	}
	return fmt.Sprintf("%s [%s] entropy=%.2f",
		strings.Join(cats, ","), signal.MaxSeverity(cats), signal.Entropy(s.Value))
}

func writeListings(w io.Writer, mod *metadata.Module, filter string, annotators ...il.Annotator) {
	for _, t := range mod.Types {
		if t.External {
			continue
		}
		for _, m := range t.Methods {
			if m.Body == nil || !strings.Contains(m.FullName(), filter) {
				continue
			}
			fmt.Fprintf(w, "// %s\n", m.FullName())
			raw, err := m.Body.RawInstructions()
			var insts il.Instructions
			if err == nil {
				insts, err = il.Decode(raw)
			}
			if err != nil {
				fmt.Fprintf(w, "// skipped: %s\n\n", err)
				continue
			}
			fmt.Fprintln(w, il.Format(insts, annotators...))
		}
	}
}

// outline builds a tree of the module's types, fields and methods.
func outline(mod *metadata.Module) treeprint.Tree {
	root := treeprint.New()
	root.SetValue(mod.Name)
	for _, t := range mod.Types {
		if t.External {
			continue
		}
		var flags []string
		if t.Public {
			flags = append(flags, "public")
		}
		if t.Sealed {
			flags = append(flags, "sealed")
		}
		if t.Abstract {
			flags = append(flags, "abstract")
		}
		label := t.FullName
		if t.BaseType != "" {
			label += " : " + t.BaseType
		}
		var tb treeprint.Tree
		if len(flags) > 0 {
			tb = root.AddMetaBranch(strings.Join(flags, " "), label)
		} else {
			tb = root.AddBranch(label)
		}
		for _, f := range t.Fields {
			tb.AddMetaNode("field", f.FieldType+" "+f.Name)
		}
		for _, m := range t.Methods {
			meta := "method"
			switch {
			case m.IsPInvoke():
				meta = "pinvoke " + m.PInvoke.Module
			case m.Body == nil:
				meta = "no body"
			}
			tb.AddMetaNode(meta, m.FullName())
		}
	}
	return root
}
