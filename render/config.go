package render

const (
	EngineMermaid = "mermaid"
	EngineD2      = "d2"
)

// Config is applied once when the engine starts and never changes for the
// lifetime of an adapter.
type Config struct {
	Engine        string
	Theme         string
	FontFamily    string
	FontSize      float64
	SecurityLevel string

	ER        ERConfig
	Flowchart FlowchartConfig

	// IDPrefix keys every rendered graphic as <IDPrefix>-<n>.
	IDPrefix string
}

type ERConfig struct {
	UseMaxWidth     bool
	MinEntityWidth  int
	MinEntityHeight int
	EntityPadding   int
}

type FlowchartConfig struct {
	UseMaxWidth   bool
	WrappingWidth int
}

func DefaultConfig() Config {
	return Config{
		Engine:        EngineMermaid,
		Theme:         "default",
		FontFamily:    "JetBrains Mono, Courier New, monospace",
		FontSize:      14,
		SecurityLevel: "loose",
		ER: ERConfig{
			UseMaxWidth:     true,
			MinEntityWidth:  180,
			MinEntityHeight: 60,
			EntityPadding:   20,
		},
		Flowchart: FlowchartConfig{
			UseMaxWidth:   true,
			WrappingWidth: 200,
		},
		IDPrefix: "mermaid",
	}
}
