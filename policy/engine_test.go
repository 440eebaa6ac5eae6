package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func input(channel, role, text string) map[string]interface{} {
	return map[string]interface{}{
		"chat_id":     "c1",
		"subject":     "billing",
		"sender_role": role,
		"channel":     channel,
		"text":        text,
	}
}

func TestDefaultPolicy(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	allowed, err := engine.Allow(ctx, input("sms", "Client", "help"))
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = engine.Allow(ctx, input("sms", "Client", ""))
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCustomPolicyRoutesByChannel(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, `
package escalation

default allow = true

# Only agents may page the on-call phone.
allow = false {
	input.channel == "sms"
	input.sender_role != "Agent"
}
`)
	require.NoError(t, err)

	allowed, err := engine.Allow(ctx, input("sms", "Client", "help"))
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = engine.Allow(ctx, input("sms", "Agent", "help"))
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = engine.Allow(ctx, input("slack", "Client", "help"))
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestUndefinedAllowDefaultsToTrue(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, `
package escalation

allow = false {
	input.channel == "nats"
}
`)
	require.NoError(t, err)

	allowed, err := engine.Allow(ctx, input("sms", "Client", "help"))
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestNonBooleanAllowIsAnError(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, `
package escalation

allow = "yes"
`)
	require.NoError(t, err)

	_, err = engine.Allow(ctx, input("sms", "Client", "help"))
	assert.Error(t, err)
}

func TestInvalidPolicy(t *testing.T) {
	_, err := NewEngine(context.Background(), "package escalation\nallow = {")
	assert.Error(t, err)
}

func TestNewEngineFromFile(t *testing.T) {
	ctx := context.Background()

	engine, err := NewEngineFromFile(ctx, "")
	require.NoError(t, err)
	allowed, err := engine.Allow(ctx, input("sms", "Client", "help"))
	require.NoError(t, err)
	assert.True(t, allowed)

	path := filepath.Join(t.TempDir(), "escalation.rego")
	require.NoError(t, os.WriteFile(path, []byte("package escalation\n\ndefault allow = false\n"), 0o600))
	engine, err = NewEngineFromFile(ctx, path)
	require.NoError(t, err)
	allowed, err = engine.Allow(ctx, input("sms", "Agent", "help"))
	require.NoError(t, err)
	assert.False(t, allowed)

	_, err = NewEngineFromFile(ctx, filepath.Join(t.TempDir(), "missing.rego"))
	assert.Error(t, err)
}
