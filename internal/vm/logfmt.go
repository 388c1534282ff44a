package vm

// LogPolicy captures the VM limits a log was produced under. A log replayed
// against a VM with different limits would diverge on collection timing, so
// the header pins them.
type LogPolicy struct {
	Capacity    int `json:"capacity"`
	StackMax    int `json:"stack_max"`
	GCThreshold int `json:"gc_threshold"`
}

// LogHeader is the first line of an execution log.
type LogHeader struct {
	V      int       `json:"v"`
	Kind   string    `json:"kind"`
	Tool   string    `json:"tool"`
	Policy LogPolicy `json:"policy"`
}

// LogOpEvent records one public VM operation and its observable result.
type LogOpEvent struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
	N    int64  `json:"n,omitempty"`
	H    Handle `json:"h"`
}

// LogGCEvent records one completed collection cycle.
type LogGCEvent struct {
	Kind      string `json:"kind"`
	Reason    string `json:"reason"`
	Freed     int    `json:"freed"`
	Live      int    `json:"live"`
	Threshold int    `json:"threshold"`
}

// LogFaultEvent records a fault surfaced to the driver.
type LogFaultEvent struct {
	Kind string `json:"kind"`
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// LogExitEvent records driver completion.
type LogExitEvent struct {
	Kind string `json:"kind"`
	Code int    `json:"code"`
}

// NewLogHeader creates a log header for the given VM limits.
func NewLogHeader(cfg Config) LogHeader {
	cfg = cfg.withDefaults()
	return LogHeader{
		V:    1,
		Kind: "header",
		Tool: "pairvm",
		Policy: LogPolicy{
			Capacity:    cfg.Capacity,
			StackMax:    cfg.StackMax,
			GCThreshold: cfg.GCThreshold,
		},
	}
}
