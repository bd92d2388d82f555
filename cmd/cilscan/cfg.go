package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/zboralski/lattice"
	lrender "github.com/zboralski/lattice/render"

	"cilscan/internal/callgraph"
	"cilscan/internal/engine"
	"cilscan/internal/il"
	"cilscan/internal/loader"
	"cilscan/internal/metadata"
	"cilscan/internal/output"
	"cilscan/internal/render"
	"cilscan/internal/rules"
	"cilscan/internal/signal"
	"cilscan/internal/watchdog"
)

func cfgCmd() *cobra.Command {
	var (
		outDir string
		k      int
		method string
		svg    bool
	)

	cmd := &cobra.Command{
		Use:   "cfg [flags] dump",
		Short: "Write call graph, CFG and string signal graphs as DOT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if k < 0 {
				return fmt.Errorf("--k must be >= 0")
			}
			return runCFG(args[0], outDir, k, method, svg)
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "graphs", "output directory")
	cmd.Flags().IntVar(&k, "k", 2, "call hops around signal methods kept as context")
	cmd.Flags().StringVar(&method, "method", "", "also write annotated CFGs of methods whose full name contains this text")
	cmd.Flags().BoolVar(&svg, "svg", false, "render every DOT file to SVG with graphviz")
	return cmd
}

func runCFG(path, outDir string, k int, method string, svg bool) error {
	mod, err := loader.Load(path)
	if err != nil {
		return err
	}
	title := moduleTitle(path)

	funcs, skipped := callgraph.Collect(mod)
	if skipped > 0 {
		log.Warningf("%d method bodies skipped", skipped)
	}
	if len(funcs) == 0 {
		return fmt.Errorf("%s: no method bodies", path)
	}

	var written []string
	write := func(name, dot string) error {
		p := filepath.Join(outDir, name)
		if err := output.WriteFile(p, dot); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %s (%d bytes)\n", p, len(dot))
		written = append(written, p)
		return nil
	}

	cg := callgraph.BuildCallGraph(funcs)
	if err := write("callgraph.dot", lrender.DOT(cg, title)); err != nil {
		return err
	}
	if err := write("cfg.dot", lrender.DOTCFG(callgraph.BuildCFG(funcs), title)); err != nil {
		return err
	}

	sfuncs, edges, refs := callgraph.SignalInputs(funcs)
	g := signal.BuildSignalGraph(sfuncs, edges, refs, k)
	log.Infof("signal graph: %d signal, %d context of %d methods",
		g.Stats.SignalFuncs, g.Stats.ContextFuncs, g.Stats.TotalFuncs)

	jsonPath := filepath.Join(outDir, "signal.json")
	if err := output.WriteJSON(jsonPath, g); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d funcs, %d edges)\n", jsonPath, len(g.Funcs), len(g.Edges))

	if len(g.Funcs) > 0 {
		if err := write("signal.dot", render.SignalDOT(g, title, render.NASA)); err != nil {
			return err
		}
		if scfg := signalCFG(funcs, g); len(scfg.Funcs) > 0 {
			if err := write("signal_cfg.dot", lrender.DOTCFG(scfg, title+" (signal)")); err != nil {
				return err
			}
		}
	}

	if method != "" {
		marks, err := findingMarks(mod)
		if err != nil {
			return err
		}
		n := 0
		for _, f := range funcs {
			if !strings.Contains(f.Name, method) {
				continue
			}
			fcfg := il.BuildCFG(f.Name, f.Insts, f.Entries...)
			name := filepath.Join("methods", sanitizeFilename(f.Name)+".dot")
			if err := write(name, render.CFGDOT(fcfg, marks[f.Name], render.NASA)); err != nil {
				return err
			}
			n++
		}
		if n == 0 {
			log.Warningf("no method matches %q", method)
		}
	}

	if svg {
		renderSVG(written)
	}
	return nil
}

// signalCFG collects the call and string summaries of signal methods.
func signalCFG(funcs []callgraph.FuncInfo, g *signal.SignalGraph) *lattice.CFGGraph {
	role := make(map[string]string, len(g.Funcs))
	for _, sf := range g.Funcs {
		role[sf.Name] = sf.Role
	}
	out := &lattice.CFGGraph{}
	for _, f := range funcs {
		if role[f.Name] != signal.RoleSignal {
			continue
		}
		if fc := callgraph.BuildSignalFuncCFG(f); len(fc.Blocks) > 0 {
			out.Funcs = append(out.Funcs, fc)
		}
	}
	return out
}

// findingMarks runs the enabled rules over mod and indexes the findings by
// method and offset.
func findingMarks(mod *metadata.Module) (map[string]map[int]string, error) {
	var col engine.Collector
	wd := watchdog.New(watchdog.Options{Timeout: time.Duration(cfg.Watchdog.Timeout)})
	defer wd.Shutdown()

	d, err := engine.NewDispatcher(engine.Options{Watchdog: wd},
		rules.Select(rules.All(&col), cfg.Rules.Disabled)...)
	if err != nil {
		return nil, err
	}
	if _, err := d.Run(mod); err != nil {
		return nil, err
	}

	ids := make(map[string]map[int][]string)
	for _, v := range col.Violations {
		if v.Entity.Kind != engine.EntityMethod || v.Offset < 0 {
			continue
		}
		byOff, ok := ids[v.Entity.Name]
		if !ok {
			byOff = make(map[int][]string)
			ids[v.Entity.Name] = byOff
		}
		byOff[v.Offset] = append(byOff[v.Offset], v.CheckID)
	}

	marks := make(map[string]map[int]string, len(ids))
	for name, byOff := range ids {
		m := make(map[int]string, len(byOff))
		for off, checks := range byOff {
			sort.Strings(checks)
			m[off] = strings.Join(checks, " ")
		}
		marks[name] = m
	}
	return marks, nil
}

// renderSVG converts DOT files with graphviz when it is installed.
func renderSVG(dotFiles []string) {
	dotBin, err := exec.LookPath("dot")
	if err != nil {
		fmt.Fprintf(os.Stderr, "\ndot not found in PATH; SVG not generated.\n")
		for _, df := range dotFiles {
			fmt.Fprintf(os.Stderr, "  dot -Tsvg -o %s %s\n", strings.TrimSuffix(df, ".dot")+".svg", df)
		}
		return
	}
	for _, df := range dotFiles {
		svgPath := strings.TrimSuffix(df, ".dot") + ".svg"
		cmd := exec.Command(dotBin, "-Tsvg", "-o", svgPath, df)
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			log.Warningf("dot %s: %s", df, err)
			continue
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", svgPath)
	}
}
