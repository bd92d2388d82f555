package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSignalGraph(t *testing.T) {
	funcs := []Func{{Name: "A"}, {Name: "B"}, {Name: "C"}, {Name: "D"}}
	edges := []Edge{{From: "A", To: "B"}, {From: "B", To: "C"}, {From: "B", To: "C"}, {From: "C", To: "D"}}
	refs := []StringRef{
		{Func: "B", Offset: 3, Value: "https://update.example.com/api"},
		{Func: "D", Offset: 0, Value: "Index out of range"},
	}

	g := BuildSignalGraph(funcs, edges, refs, 1)

	require.Len(t, g.Funcs, 4)
	roles := map[string]string{}
	for _, f := range g.Funcs {
		roles[f.Name] = f.Role
	}
	assert.Equal(t, map[string]string{"A": RoleContext, "B": RoleSignal, "C": RoleContext, "D": ""}, roles)

	assert.Equal(t, "B", g.Funcs[0].Name)
	assert.Equal(t, []string{CatURL}, g.Funcs[0].Categories)
	assert.Equal(t, SeverityMedium, g.Funcs[0].Severity)
	require.Len(t, g.Funcs[0].StringRefs, 1)
	assert.Equal(t, 3, g.Funcs[0].StringRefs[0].Offset)

	assert.Len(t, g.Edges, 3, "duplicate edge dropped")
	assert.Equal(t, 1, g.Stats.SignalFuncs)
	assert.Equal(t, 2, g.Stats.ContextFuncs)
	assert.Equal(t, 2, g.Stats.StringRefCount)
	assert.Equal(t, map[string]int{CatURL: 1}, g.Stats.Categories)
}

func TestBuildSignalGraphEntryPoints(t *testing.T) {
	funcs := []Func{{Name: "Main"}, {Name: "Helper"}}
	edges := []Edge{{From: "Main", To: "Helper"}}
	g := BuildSignalGraph(funcs, edges, nil, 2)

	entry := map[string]bool{}
	for _, f := range g.Funcs {
		entry[f.Name] = f.IsEntryPoint
	}
	assert.True(t, entry["Main"])
	assert.False(t, entry["Helper"])
	assert.Zero(t, g.Stats.SignalFuncs)
}

func TestBuildSignalGraphNoContext(t *testing.T) {
	funcs := []Func{{Name: "A"}, {Name: "B"}}
	edges := []Edge{{From: "A", To: "B"}, {From: "A", To: ""}}
	refs := []StringRef{
		{Func: "B", Value: `HKEY_LOCAL_MACHINE\Software\App`},
		{Func: "B", Value: "cmd.exe"},
	}
	g := BuildSignalGraph(funcs, edges, refs, 0)

	require.Len(t, g.Funcs, 2)
	assert.Equal(t, "B", g.Funcs[0].Name)
	assert.Equal(t, SeverityHigh, g.Funcs[0].Severity)
	assert.Contains(t, g.Funcs[0].Categories, CatRegistry)
	assert.Contains(t, g.Funcs[0].Categories, CatProcess)
	assert.Empty(t, g.Funcs[1].Role)
	assert.Len(t, g.Edges, 1, "edge to unnamed callee dropped")
	assert.Zero(t, g.Stats.ContextFuncs)
}
