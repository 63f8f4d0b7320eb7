package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/reasonflow/reasoning-gateway/external"
	"github.com/reasonflow/reasoning-gateway/internal/capability"
)

func TestMainCallBody_TagStrategy(t *testing.T) {
	req := &Request{
		Model:   "m",
		RawBody: []byte(`{"model":"m","messages":[{"role":"user","content":"hi"}],"stream":false,"temperature":0.7,"summary_model":"small"}`),
		Capability: capability.ModelCapability{
			Model:    "m",
			Strategy: capability.StrategyTag,
		},
	}

	body, err := req.MainCallBody()
	require.NoError(t, err)

	assert.True(t, gjson.GetBytes(body, "stream").Bool(), "stream must be forced on")
	assert.False(t, gjson.GetBytes(body, "summary_model").Exists(), "gateway-only field must be stripped")
	assert.Equal(t, 0.7, gjson.GetBytes(body, "temperature").Float(), "passthrough fields untouched")

	msgs := gjson.GetBytes(body, "messages").Array()
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Get("role").String())
	assert.Equal(t, external.TagInstruction, msgs[0].Get("content").String())
	assert.Equal(t, "hi", msgs[1].Get("content").String())
}

func TestMainCallBody_NativeStrategySkipsInjection(t *testing.T) {
	req := &Request{
		Model:   "m",
		RawBody: []byte(`{"model":"m","messages":[{"role":"user","content":"hi"}]}`),
		Capability: capability.ModelCapability{
			Model:                "m",
			Strategy:             capability.StrategyNative,
			NativeReasoningField: true,
		},
	}

	body, err := req.MainCallBody()
	require.NoError(t, err)

	msgs := gjson.GetBytes(body, "messages").Array()
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Get("role").String())
	assert.True(t, gjson.GetBytes(body, "stream").Bool())
}

func TestMainCallBody_EmptyMessages(t *testing.T) {
	req := &Request{
		Model:      "m",
		RawBody:    []byte(`{"model":"m","messages":[]}`),
		Capability: capability.ModelCapability{Model: "m", Strategy: capability.StrategyTag},
	}

	body, err := req.MainCallBody()
	require.NoError(t, err)

	msgs := gjson.GetBytes(body, "messages").Array()
	require.Len(t, msgs, 1)
	assert.Equal(t, "system", msgs[0].Get("role").String())
}

func TestMainCallBody_TagInstructionLiteralSurvivesEncoding(t *testing.T) {
	req := &Request{
		Model:      "m",
		RawBody:    []byte(`{"model":"m","messages":[{"role":"user","content":"x"}]}`),
		Capability: capability.ModelCapability{Model: "m", Strategy: capability.StrategyTag},
	}

	body, err := req.MainCallBody()
	require.NoError(t, err)
	// The injected instruction contains <analysis> literally; HTML escaping
	// would corrupt the tags the parser depends on.
	assert.Contains(t, string(body), "<analysis>")
	assert.NotContains(t, string(body), `\u003canalysis\u003e`)
}
