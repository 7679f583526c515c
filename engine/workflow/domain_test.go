package workflow_test

import (
	"testing"

	"github.com/sequentry/sequentry/engine/channel"
	"github.com/sequentry/sequentry/engine/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlowID(t *testing.T) {
	t.Run("Should normalize case and whitespace", func(t *testing.T) {
		flow, err := workflow.ParseFlowID("  email_then_social ")
		require.NoError(t, err)
		assert.Equal(t, workflow.FlowEmailThenSocial, flow)
	})

	t.Run("Should reject unknown flows", func(t *testing.T) {
		_, err := workflow.ParseFlowID("CARRIER_PIGEON")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown flow")
	})
}

func TestFlowID_Channels(t *testing.T) {
	t.Run("Should resolve every flow to its ordered channels", func(t *testing.T) {
		assert.Equal(t,
			[]channel.Channel{channel.ChannelEmail, channel.ChannelSocial},
			workflow.FlowEmailThenSocial.Channels(),
		)
		assert.Equal(t,
			[]channel.Channel{channel.ChannelSocial, channel.ChannelEmail},
			workflow.FlowSocialThenEmail.Channels(),
		)
		assert.Equal(t,
			[]channel.Channel{channel.ChannelEmail},
			workflow.FlowEmailOnly.Channels(),
		)
		assert.Equal(t,
			[]channel.Channel{channel.ChannelSocial},
			workflow.FlowSocialOnly.Channels(),
		)
	})
}

func TestStatus_Terminal(t *testing.T) {
	t.Run("Should mark only completed and failed as terminal", func(t *testing.T) {
		assert.False(t, workflow.StatusInProgress.Terminal())
		assert.True(t, workflow.StatusCompleted.Terminal())
		assert.True(t, workflow.StatusFailed.Terminal())
	})
}

func TestInput_CircuitInput(t *testing.T) {
	t.Run("Should flatten the submission for guard evaluation", func(t *testing.T) {
		in := deliveryInput("EMAIL_THEN_SOCIAL")
		in.StrategyID = "campaign-a"
		in.Payload = map[string]any{"audience": "subscribers", "action": "shadowed"}

		payload := in.CircuitInput(workflow.FlowEmailThenSocial)
		// reserved keys always win over caller payload
		assert.Equal(t, "send_campaign", payload["action"])
		assert.Equal(t, "EMAIL_THEN_SOCIAL", payload["flow_id"])
		assert.Equal(t, "campaign-a", payload["strategy"])
		assert.Equal(t, "The spring line is live.", payload["content"])
		assert.Equal(t, "subscribers", payload["audience"])

		recipient, ok := payload["recipient"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "user@example.com", recipient["email"])
		assert.Equal(t, "@launchfan", recipient["handle"])
	})
}
