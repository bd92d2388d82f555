package render

// Theme holds colors for graph rendering.
type Theme struct {
	Background string
	NodeFill   string
	NodeBorder string
	TextColor  string

	// Edge colors.
	EdgeCall   string // call and newobj edges
	EdgeSignal string // edges into signal methods
	EdgeTrue   string // taken branch
	EdgeFalse  string // fallthrough of a conditional branch
	EdgeString string // method to string literal

	// Node accents.
	EntryBorder  string // method and handler entry blocks
	TermFill     string // blocks ending in ret, throw or an exit
	FindingColor string // instructions with a reported violation

	// Cluster styling.
	ClusterBorder string // subgraph cluster border
	ClusterLabel  string // subgraph cluster label text
}

// NASA is the NASA/Bauhaus theme: geometric, monochrome, sparse color.
var NASA = Theme{
	Background: "#F5F5F5",
	NodeFill:   "white",
	NodeBorder: "#1A1A1A",
	TextColor:  "#1A1A1A",

	EdgeCall:   "#424242", // dark gray
	EdgeSignal: "#0B3D91", // NASA blue
	EdgeTrue:   "#0B3D91",
	EdgeFalse:  "#FC3D21", // NASA red
	EdgeString: "#C2185B", // pink

	EntryBorder:  "#0B3D91",
	TermFill:     "#ECEFF1", // blue-gray 50
	FindingColor: "#C62828",

	ClusterBorder: "#BDBDBD",
	ClusterLabel:  "#757575",
}
