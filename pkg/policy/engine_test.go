package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polisai/polis-cipher/pkg/domain"
)

const noDecodeModule = `package cipher

decision := {"action": "block", "reason": "decode disabled", "metadata": {"rule": "no-decode"}} if {
	input.operation == "decode"
}
`

func TestDefaultModuleAllows(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, EngineOptions{Modules: DefaultModules()})
	require.NoError(t, err)

	decision, err := engine.Evaluate(ctx, Input{Operation: domain.OperationEncode, MessageLength: 5, Limits: Limits{MaxMessageLength: 10}})
	require.NoError(t, err)
	assert.True(t, decision.Allowed())

	// length is LengthLimit's job; the default module never blocks on it
	decision, err = engine.Evaluate(ctx, Input{Operation: domain.OperationDecode, MessageLength: 11, Limits: Limits{MaxMessageLength: 10}})
	require.NoError(t, err)
	assert.True(t, decision.Allowed())
}

func TestDefaultChainBlocksOnlyInLengthLimit(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, EngineOptions{Modules: DefaultModules()})
	require.NoError(t, err)
	chain := NewChain(LengthLimit(), engine)

	decision, err := chain.Evaluate(ctx, Input{Operation: domain.OperationEncode, MessageLength: 11, Limits: Limits{MaxMessageLength: 10}})
	require.NoError(t, err)
	assert.Equal(t, ActionBlock, decision.Action)
	assert.Equal(t, "message length 11 exceeds limit 10", decision.Reason)
}

func TestCustomModule(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, EngineOptions{Modules: map[string]string{"nodecode.rego": noDecodeModule}})
	require.NoError(t, err)

	decision, err := engine.Evaluate(ctx, Input{Operation: domain.OperationDecode, MessageLength: 3})
	require.NoError(t, err)
	assert.Equal(t, ActionBlock, decision.Action)
	assert.Equal(t, "decode disabled", decision.Reason)
	assert.Equal(t, "no-decode", decision.Metadata["rule"])

	// Undefined decisions allow.
	decision, err = engine.Evaluate(ctx, Input{Operation: domain.OperationEncode, MessageLength: 3})
	require.NoError(t, err)
	assert.True(t, decision.Allowed())
}

func TestNewEngineErrors(t *testing.T) {
	ctx := context.Background()

	_, err := NewEngine(ctx, EngineOptions{})
	require.Error(t, err)

	_, err = NewEngine(ctx, EngineOptions{Modules: map[string]string{"bad.rego": "package cipher\n decision := {"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.rego")
}

func TestUnknownActionIsAnError(t *testing.T) {
	ctx := context.Background()
	module := "package cipher\n\ndecision := {\"action\": \"redact\"}\n"
	engine, err := NewEngine(ctx, EngineOptions{Modules: map[string]string{"odd.rego": module}})
	require.NoError(t, err)

	_, err = engine.Evaluate(ctx, Input{Operation: domain.OperationEncode})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action")
}

func TestDecisionCache(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, EngineOptions{Modules: DefaultModules(), CacheMaxEntries: 2})
	require.NoError(t, err)

	in := Input{Operation: domain.OperationEncode, MessageLength: 4, Limits: Limits{MaxMessageLength: 8}}
	for i := 0; i < 3; i++ {
		_, err := engine.Evaluate(ctx, in)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, engine.cache.Len())

	for _, n := range []int{1, 2, 3} {
		_, err := engine.Evaluate(ctx, Input{Operation: domain.OperationEncode, MessageLength: n})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, engine.cache.Len(), "cache is bounded")

	_, err = engine.Evaluate(ctx, Input{Operation: domain.OperationDecode, DisableCache: true})
	require.NoError(t, err)
	assert.Equal(t, 2, engine.cache.Len())

	engine.FlushCache()
	assert.Equal(t, 0, engine.cache.Len())
}

func TestCachingDisabled(t *testing.T) {
	engine, err := NewEngine(context.Background(), EngineOptions{Modules: DefaultModules(), CacheMaxEntries: -1})
	require.NoError(t, err)
	assert.Nil(t, engine.cache)

	_, err = engine.Evaluate(context.Background(), Input{Operation: domain.OperationEncode})
	require.NoError(t, err)
	engine.FlushCache()
}

func TestReadModules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nodecode.rego")
	require.NoError(t, os.WriteFile(path, []byte(noDecodeModule), 0o600))

	modules, err := ReadModules([]string{path})
	require.NoError(t, err)
	assert.Equal(t, noDecodeModule, modules["nodecode.rego"])

	_, err = ReadModules([]string{filepath.Join(dir, "missing.rego")})
	require.Error(t, err)
}
