package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mockforge/core/internal/model"
)

// fixtureDocument is the on-disk shape for the non-OpenAPI, non-gRPC
// protocols (spec.md §6): MQTT and AMQP topic subscriptions, Kafka
// topic/partition consumers, and the plain request/response pairs FTP,
// SMTP, and TCP fixtures need. One file holds a list of operations for
// a single protocol.
type fixtureDocument struct {
	Operations []fixtureOperation `yaml:"operations"`
}

type fixtureOperation struct {
	// Name is the unique, reload-stable identifier spec.md §4.1 keys
	// admin-API lookups and override targeting on.
	Name string `yaml:"name"`

	// Pattern is a topic pattern (MQTT "+"/"#", AMQP "*"/">") for the
	// pub/sub protocols, or a literal command/path for FTP, SMTP, TCP.
	Pattern string `yaml:"pattern"`

	// Tags supports override target_form "tag:<name>" matching.
	Tags []string `yaml:"tags"`

	RequestSchema   any            `yaml:"request_schema"`
	ResponseSchemas map[string]any `yaml:"response_schemas"`

	// QoS, Retain, and Ordered only apply to MQTT/AMQP/Kafka fixtures;
	// zero values are harmless no-ops for the other protocols.
	QoS     int  `yaml:"qos"`
	Retain  bool `yaml:"retain"`
	Ordered bool `yaml:"ordered"`
}

func loadFixtureFile(protocol model.Protocol, path string) ([]*model.SpecOperation, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture file: %w", err)
	}

	var doc fixtureDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse fixture file: %w", err)
	}

	seen := make(map[string]struct{}, len(doc.Operations))
	ops := make([]*model.SpecOperation, 0, len(doc.Operations))
	for _, fo := range doc.Operations {
		if fo.Name == "" {
			return nil, fmt.Errorf("fixture file %s: operation missing required name", path)
		}
		if fo.Pattern == "" {
			return nil, fmt.Errorf("fixture file %s: operation %q missing required pattern", path, fo.Name)
		}
		if _, dup := seen[fo.Name]; dup {
			return nil, fmt.Errorf("fixture file %s: duplicate operation name %q", path, fo.Name)
		}
		seen[fo.Name] = struct{}{}

		metadata := map[string]string{}
		if isTopicProtocol(protocol) {
			metadata["qos"] = fmt.Sprintf("%d", fo.QoS)
			metadata["retain"] = boolString(fo.Retain)
			metadata["ordered"] = boolString(fo.Ordered)
		}

		ops = append(ops, &model.SpecOperation{
			Protocol:        protocol,
			Name:            fo.Name,
			PathPattern:     fo.Pattern,
			Method:          "",
			RequestSchema:   fo.RequestSchema,
			ResponseSchemas: fo.ResponseSchemas,
			Tags:            toTagSet(fo.Tags),
			Metadata:        metadata,
		})
	}
	return ops, nil
}
