package channel

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sequentry/sequentry/engine/core"
)

// Channel identifies a delivery channel.
type Channel string

const (
	ChannelEmail  Channel = "email"
	ChannelSocial Channel = "social"
)

// Valid checks if the channel is a known value
func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelSocial
}

// ParseChannel normalizes and validates a channel name.
func ParseChannel(raw string) (Channel, error) {
	c := Channel(strings.ToLower(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown channel: %q", raw)
	}
	return c, nil
}

// Recipient carries the per-channel addresses of one target identity.
type Recipient struct {
	Email  string `json:"email,omitempty"  yaml:"email,omitempty"  mapstructure:"email"`
	Handle string `json:"handle,omitempty" yaml:"handle,omitempty" mapstructure:"handle"`
}

// Identity returns the address used on the given channel, or "" when the
// recipient has none there.
func (r Recipient) Identity(c Channel) string {
	switch c {
	case ChannelEmail:
		return r.Email
	case ChannelSocial:
		return r.Handle
	}
	return ""
}

// Empty reports whether the recipient has no address on any channel.
func (r Recipient) Empty() bool {
	return r.Email == "" && r.Handle == ""
}

// Request is one delivery handed to a channel agent. The execution context
// is the one the circuit chain validated; agents must thread its RequestID
// through to the provider.
type Request struct {
	Exec      core.ExecutionContext `json:"exec"`
	Channel   Channel               `json:"channel"`
	Recipient Recipient             `json:"recipient"`
	Subject   string                `json:"subject,omitempty"`
	Body      string                `json:"body"`
	Metadata  map[string]any        `json:"metadata,omitempty"`
}

// Result is what an agent reports back. ProviderResult is carried verbatim;
// the coordinator never recomputes or reinterprets it.
type Result struct {
	OK             bool            `json:"ok"`
	ProviderResult json.RawMessage `json:"provider_result,omitempty"`
	Error          *core.Error     `json:"error,omitempty"`
}

// Suppression is one suppression hit: the channel and identity that blocked
// the delivery, with the recorded reason.
type Suppression struct {
	Channel  Channel `json:"channel"`
	Identity string  `json:"identity"`
	Reason   string  `json:"reason"`
}

// EngagementMetrics is one per-channel engagement row keyed by the execution
// that produced the delivery.
type EngagementMetrics struct {
	ID          core.ID   `db:"id"           json:"id"`
	ExecutionID core.ID   `db:"execution_id" json:"execution_id"`
	Channel     Channel   `db:"channel"      json:"channel"`
	Reach       int64     `db:"reach"        json:"reach"`
	Engagements int64     `db:"engagements"  json:"engagements"`
	Source      string    `db:"source"       json:"source"`
	RecordedAt  time.Time `db:"recorded_at"  json:"recorded_at"`
}

// AggregatedMetrics is the cross-channel view for one execution. The rate is
// best-effort: nil until at least one channel reports reach.
type AggregatedMetrics struct {
	ExecutionID    core.ID   `json:"execution_id"`
	Channels       []Channel `json:"channels"`
	Reach          int64     `json:"reach"`
	Engagements    int64     `json:"engagements"`
	EngagementRate *float64  `json:"engagement_rate,omitempty"`
}

// Aggregate combines per-channel rows into the unified view. Rows for other
// executions must not be passed in.
func Aggregate(executionID core.ID, rows []*EngagementMetrics) *AggregatedMetrics {
	agg := &AggregatedMetrics{ExecutionID: executionID}
	seen := make(map[Channel]bool)
	for _, row := range rows {
		agg.Reach += row.Reach
		agg.Engagements += row.Engagements
		if !seen[row.Channel] {
			seen[row.Channel] = true
			agg.Channels = append(agg.Channels, row.Channel)
		}
	}
	if agg.Reach > 0 {
		rate := float64(agg.Engagements) / float64(agg.Reach)
		agg.EngagementRate = &rate
	}
	return agg
}
