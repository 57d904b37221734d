package cli

// Flags holds all command-line flag values
type Flags struct {
	// General flags
	CfgFile    string
	BatchFile  string
	ListModels bool
	DryRun     bool
	Verbose    bool
	JSON       bool

	// Request flags
	Source  string
	Target  string
	Context string
	Persona string
	Domains string

	// Storage flags
	DatabasePath string

	// Subcommand flags
	PruneKeep      int
	GlossaryDomain string
	GlossaryNote   string
}

// NewFlags creates a new Flags instance with default values
func NewFlags() *Flags {
	return &Flags{}
}
