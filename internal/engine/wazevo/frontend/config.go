package frontend

import "go.uber.org/zap"

// Config controls the behavior of a Compiler, independent of any single function body.
type Config struct {
	// EnableLogging gates structured Debug-level logging of unconditional trap emission (trap),
	// the static out-of-bounds fold in prepareAddr, and control-frame closure in opEnd, as a
	// runtime switch over a real sink rather than fmt.Println.
	EnableLogging bool

	// Logger is the sink used when EnableLogging is true. Defaults to zap.NewNop() so callers
	// never need a nil check.
	Logger *zap.Logger

	// MaxLocals bounds the number of Wasm locals (declared + parameters) a single function may
	// declare. Zero means unbounded.
	MaxLocals int

	// MaxControlDepth bounds the nesting depth of structured control frames. Zero means
	// unbounded.
	MaxControlDepth int

	// CanonicalizeEagerly names the bitcast-at-every-consumption-site alternative to the default
	// join-only SIMD canonicalization. The lowering does not read it: whatever its value, vectors
	// are canonicalized only at joins and storage sites. See simd.go.
	CanonicalizeEagerly bool
}

// NewConfig returns a Config with defaults applied (a no-op logger, no soft limits, lazy
// canonicalization).
func NewConfig() *Config {
	return &Config{Logger: zap.NewNop()}
}

// logger returns c.Logger, defaulting to a no-op sink if unset.
func (c *Config) logger() *zap.Logger {
	if c == nil || c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
