package config

// Environment variables that carry the invocation mode from the dispatching
// vargo process through cargo to every vargo it starts as RUSTC_WRAPPER.
// Nothing else in vargo reads or writes them.
const (
	EnvRustcWrapper = "RUSTC_WRAPPER"
	EnvAsRustc      = "VARGO_AS_RUSTC"
	EnvVerusPath    = "VARGO_VERUS_PATH"
)

// Mode describes how this process was invoked.
type Mode struct {
	// AsRustc is true when cargo started this process in place of rustc.
	AsRustc bool
	// Wrapper is the vargo executable cargo should run as rustc.
	Wrapper string
	// VerusPath is the verus binary resolved by the dispatching process.
	VerusPath string
}

// ModeFromEnv decodes the mode. The marker counts as set when non-empty.
func ModeFromEnv(lookup func(string) (string, bool)) Mode {
	var m Mode
	if v, ok := lookup(EnvAsRustc); ok && v != "" {
		m.AsRustc = true
	}
	m.Wrapper, _ = lookup(EnvRustcWrapper)
	m.VerusPath, _ = lookup(EnvVerusPath)
	return m
}

// Environ encodes the mode for a child cargo. Every process cargo starts
// through the wrapper sees AsRustc set.
func (m Mode) Environ() []string {
	env := []string{
		EnvRustcWrapper + "=" + m.Wrapper,
		EnvAsRustc + "=true",
	}
	if m.VerusPath != "" {
		env = append(env, EnvVerusPath+"="+m.VerusPath)
	}
	return env
}
