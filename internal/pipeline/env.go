package pipeline

import (
	"fmt"
	"sort"
)

// Env is an immutable set of environment variable overrides. It is built once
// (from global configuration, entry overrides, and runner-injected values) and
// passed explicitly into each phase invocation; phases never see or mutate
// ambient process state through it.
type Env struct {
	vars map[string]string
}

// NewEnv copies m into a fresh Env. A nil or empty map yields the zero Env.
func NewEnv(m map[string]string) Env {
	if len(m) == 0 {
		return Env{}
	}
	vars := make(map[string]string, len(m))
	for k, v := range m {
		vars[k] = v
	}
	return Env{vars: vars}
}

// Merge returns a new Env holding the receiver's variables with over's
// variables layered on top. Neither input is modified.
func (e Env) Merge(over Env) Env {
	if len(over.vars) == 0 {
		return e
	}
	if len(e.vars) == 0 {
		return over
	}
	vars := make(map[string]string, len(e.vars)+len(over.vars))
	for k, v := range e.vars {
		vars[k] = v
	}
	for k, v := range over.vars {
		vars[k] = v
	}
	return Env{vars: vars}
}

// With returns a new Env with a single additional variable set.
func (e Env) With(key, value string) Env {
	vars := make(map[string]string, len(e.vars)+1)
	for k, v := range e.vars {
		vars[k] = v
	}
	vars[key] = value
	return Env{vars: vars}
}

// Lookup returns the value for key and whether it is present.
func (e Env) Lookup(key string) (string, bool) {
	v, ok := e.vars[key]
	return v, ok
}

// Get returns the value for key, or "" when absent.
func (e Env) Get(key string) string { return e.vars[key] }

// Len returns the number of variables.
func (e Env) Len() int { return len(e.vars) }

// Keys returns the variable names in sorted order.
func (e Env) Keys() []string {
	keys := make([]string, 0, len(e.vars))
	for k := range e.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Environ renders the variables as KEY=VALUE pairs in sorted key order,
// suitable for exec.Cmd.Env.
func (e Env) Environ() []string {
	out := make([]string, 0, len(e.vars))
	for _, k := range e.Keys() {
		out = append(out, fmt.Sprintf("%s=%s", k, e.vars[k]))
	}
	return out
}

// Map returns a copy of the variables as a plain map.
func (e Env) Map() map[string]string {
	out := make(map[string]string, len(e.vars))
	for k, v := range e.vars {
		out[k] = v
	}
	return out
}
