package cli

// GlobalOptions are shared flags that apply across commands.
type GlobalOptions struct {
	ConfigFile string
	Quiet      bool // no terminal rendering of frames

	// Profiling options
	Pprof      bool   // enable HTTP pprof endpoints
	PprofAddr  string // address for pprof server (host:port)
	CPUProfile string // path to write CPU profile
}

var globalOpts = GlobalOptions{
	PprofAddr: "127.0.0.1:6060",
}
