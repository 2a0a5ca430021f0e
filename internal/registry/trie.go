package registry

import (
	"strings"

	"github.com/mockforge/core/internal/model"
)

// topicTrie indexes topic-pattern operations for MQTT (+/#) and AMQP
// (*/>) wildcards (spec.md §4.1). Both wildcard dialects are
// normalized to a single internal representation at insert time so
// resolution does not need to know which dialect registered a node.
type topicTrie struct {
	root *topicNode
}

type topicNode struct {
	children    map[string]*topicNode
	singleWild  *topicNode // "+" (MQTT) or "*" (AMQP)
	multiWild   *topicNode // "#" (MQTT) or ">" (AMQP), always a leaf
	op          *model.SpecOperation
}

func newTopicTrie() *topicTrie {
	return &topicTrie{root: &topicNode{children: map[string]*topicNode{}}}
}

func normalizeWildcard(level string) string {
	switch level {
	case "+", "*":
		return "+"
	case "#", ">":
		return "#"
	default:
		return level
	}
}

// topicLevels splits a topic or pattern into levels: on "/" (MQTT) when
// it contains one, otherwise on "." (AMQP routing keys).
func topicLevels(topic string) []string {
	if strings.Contains(topic, "/") {
		return strings.Split(topic, "/")
	}
	return strings.Split(topic, ".")
}

func (t *topicTrie) insert(pattern string, op *model.SpecOperation) {
	levels := topicLevels(pattern)
	node := t.root
	for i, level := range levels {
		norm := normalizeWildcard(level)
		switch norm {
		case "+":
			if node.singleWild == nil {
				node.singleWild = &topicNode{children: map[string]*topicNode{}}
			}
			node = node.singleWild
		case "#":
			if node.multiWild == nil {
				node.multiWild = &topicNode{children: map[string]*topicNode{}}
			}
			node = node.multiWild
			node.op = op
			return // "#"/">" must be the final level; nothing follows it
		default:
			child, ok := node.children[norm]
			if !ok {
				child = &topicNode{children: map[string]*topicNode{}}
				node.children[norm] = child
			}
			node = child
		}
		if i == len(levels)-1 {
			node.op = op
		}
	}
}

// match returns the first operation whose pattern matches topic,
// preferring literal levels over "+" over "#" at each step (the
// conventional MQTT/AMQP specificity ordering).
func (t *topicTrie) match(topic string) (*model.SpecOperation, bool) {
	levels := topicLevels(topic)
	return matchNode(t.root, levels)
}

func matchNode(node *topicNode, levels []string) (*model.SpecOperation, bool) {
	if node == nil {
		return nil, false
	}
	if len(levels) == 0 {
		if node.op != nil {
			return node.op, true
		}
		return nil, false
	}
	head, rest := levels[0], levels[1:]

	if child, ok := node.children[head]; ok {
		if op, ok := matchNode(child, rest); ok {
			return op, true
		}
	}
	if node.singleWild != nil {
		if op, ok := matchNode(node.singleWild, rest); ok {
			return op, true
		}
	}
	if node.multiWild != nil && node.multiWild.op != nil {
		return node.multiWild.op, true
	}
	return nil, false
}
