// Package mqttadapter is the MQTT protocol adapter. MQTT is
// fundamentally a publish/subscribe protocol rather than a
// request/response one, so this adapter does not implement
// adapter.Protocol's Accept loop directly; instead it hooks into an
// embedded mochi-mqtt broker's publish path, treating every inbound
// PUBLISH as one ProtocolRequest and replying, when the matched
// operation defines one, on a derived response topic. This mirrors
// spec.md §9's "a protocol adapter converts its native unit of work
// (a publish, not a call) into a ProtocolRequest" framing.
package mqttadapter

import (
	"context"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"

	"github.com/google/uuid"

	"github.com/mockforge/core/internal/logging"
	"github.com/mockforge/core/internal/model"
	"github.com/mockforge/core/internal/pipeline"
)

// Adapter embeds a mochi-mqtt broker configured to run every publish
// through the orchestrator before mochi distributes it to any real
// subscriber.
type Adapter struct {
	Orchestrator *pipeline.Orchestrator
	Broker       *mqtt.Server
}

// New builds an Adapter whose broker carries an allow-all auth hook and
// the pipeline hook, which names itself "mockforge-pipeline" (mochi-mqtt
// requires every hook to name itself uniquely).
func New(o *pipeline.Orchestrator) (*Adapter, error) {
	broker := mqtt.New(nil)
	if err := broker.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, err
	}
	a := &Adapter{Orchestrator: o, Broker: broker}
	if err := broker.AddHook(&pipelineHook{adapter: a}, nil); err != nil {
		return nil, err
	}
	return a, nil
}

// ListenTCP adds a plain TCP listener at addr and starts serving. It
// blocks until the broker stops or ctx is canceled.
func (a *Adapter) ListenTCP(ctx context.Context, id, addr string) error {
	tcp := listeners.NewTCP(listeners.Config{ID: id, Address: addr})
	if err := a.Broker.AddListener(tcp); err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = a.Broker.Close()
	}()
	return a.Broker.Serve()
}

// pipelineHook drives every inbound PUBLISH through the orchestrator.
// It embeds mqtt.HookBase so it only needs to override the one
// lifecycle method it cares about, matching mochi-mqtt's own
// partial-hook convention.
type pipelineHook struct {
	mqtt.HookBase
	adapter *Adapter
}

func (h *pipelineHook) ID() string { return "mockforge-pipeline" }

func (h *pipelineHook) Provides(b byte) bool {
	return b == mqtt.OnPublish
}

// OnPublish runs before mochi-mqtt forwards the publish to any real
// subscriber. The packet itself is returned unmodified: this hook
// observes traffic and answers on a reply topic rather than rewriting
// or dropping the original publish, since there is no single
// "response" slot in MQTT's wire format the way there is an HTTP
// status line.
func (h *pipelineHook) OnPublish(cl *mqtt.Client, pk packets.Packet) (packets.Packet, error) {
	ctx := context.Background()
	req := &model.ProtocolRequest{
		ID:          uuid.NewString(),
		Protocol:    model.ProtocolMQTT,
		Method:      "PUBLISH",
		Path:        pk.TopicName,
		Body:        model.Body{Bytes: pk.Payload, ContentType: "application/octet-stream"},
		ClientAddr:  cl.Net.Remote,
		WorkspaceID: "default",
	}

	resp := h.adapter.Orchestrator.Handle(ctx, req)
	if resp.Dropped || len(resp.Body) == 0 {
		return pk, nil
	}

	replyTopic := responseTopic(pk.TopicName)
	if err := h.adapter.Broker.Publish(replyTopic, resp.Body, false, 0); err != nil {
		logging.WarnContext(ctx, "mqtt adapter failed to publish mock response", "topic", replyTopic, "error", err)
	}
	return pk, nil
}

// responseTopic derives the topic a mock reply is published on: the
// request topic with a "/response" suffix. spec.md leaves MQTT's
// reply-topic convention unspecified; this is the simplest one a
// subscriber can predict without a control-plane round trip.
func responseTopic(topic string) string {
	return topic + "/response"
}
