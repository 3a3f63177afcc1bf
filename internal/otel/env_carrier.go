package otel

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Carries trace context through process environments, so builds spawned by hooks or workers
// join the trace of whoever started them.
//
// Injection stores variables internally for Environ; extraction falls back to the current
// process environment by prefix.
type EnvCarrier struct {
	vars map[string]string
}

// Ensure `EnvCarrier` implements [propagation.TextMapCarrier]
var _ propagation.TextMapCarrier = (*EnvCarrier)(nil)

func CreateEnvCarrier() EnvCarrier {
	return EnvCarrier{vars: make(map[string]string)}
}

const envPrefix = "DIDIT_OTEL_"

// prepend prefix and replace all - with _
func mapKey(key string) string {
	return fmt.Sprintf("%s%s", envPrefix, strings.ToUpper(strings.ReplaceAll(key, "-", "_")))
}

// strip prefix and replace all _ with -
func unmapKey(mappedKey string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(mappedKey, envPrefix), "_", "-"))
}

func (c EnvCarrier) Get(key string) string {
	key = mapKey(key)
	if v, ok := c.vars[key]; ok {
		return v
	}

	return os.Getenv(key)
}

func (c EnvCarrier) Set(key string, value string) {
	c.vars[mapKey(key)] = value
}

func (c EnvCarrier) Keys() []string {
	keysSet := make(map[string]bool, len(c.vars))

	for name := range c.vars {
		keysSet[unmapKey(name)] = true
	}

	for _, env := range os.Environ() {
		name, _, _ := strings.Cut(env, "=")
		if strings.HasPrefix(name, envPrefix) {
			keysSet[unmapKey(name)] = true
		}
	}

	keys := make([]string, 0, len(keysSet))
	for k := range keysSet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// Renders injected variables as `KEY=value` pairs for exec.Cmd.Env
func (c EnvCarrier) Environ() []string {
	env := make([]string, 0, len(c.vars))
	for name, value := range c.vars {
		env = append(env, name+"="+value)
	}
	sort.Strings(env)
	return env
}

// Environment entries carrying the span context of `ctx`
func InjectEnv(ctx context.Context) []string {
	carrier := CreateEnvCarrier()
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier.Environ()
}

// Context linked to the trace found in the process environment, if any
func ExtractEnv(ctx context.Context) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, CreateEnvCarrier())
}
