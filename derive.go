package rosbag

import "fmt"

// MessageFieldDescriptor is one named, typed field of a parsed ROS message
// definition.
type MessageFieldDescriptor struct {
	Name string
	Type string
}

// MessageTypeDescriptor is one named type extracted from a message
// definition's text (a message_definition field may embed several, e.g. a
// top-level type plus its nested dependencies).
type MessageTypeDescriptor struct {
	Name   string
	Fields []MessageFieldDescriptor
}

// MessageDefinitionParser is the external message-definition parser
// collaborator of spec.md §1: "parse_message_definition(text) -> list of
// named type descriptors". Kept as a function type so the hard core never
// depends on a concrete parser; msgdef.Parse (SPEC_FULL.md "domain stack")
// is the default implementation.
type MessageDefinitionParser func(text string) ([]MessageTypeDescriptor, error)

// ConnectionsToDatatypes derives a mapping from datatype name to field
// descriptors, per spec.md §4.7. For each connection (in first-appearance
// order), the first descriptor parse returns is keyed by the connection's
// declared Type; any further named descriptors in the same definition are
// keyed by their own name. Later connections silently overwrite earlier
// entries that share a key.
func ConnectionsToDatatypes(conns *ConnectionTable, parse MessageDefinitionParser) (map[string]MessageTypeDescriptor, error) {
	out := make(map[string]MessageTypeDescriptor)
	for _, conn := range conns.InOrder() {
		if conn.Type == "" {
			return nil, fmt.Errorf("%w: connection %d", ErrNoType, conn.Conn)
		}

		descriptors, err := parse(conn.MessageDefinition)
		if err != nil {
			return nil, fmt.Errorf("parsing message definition for connection %d: %w", conn.Conn, err)
		}
		if len(descriptors) == 0 {
			continue
		}

		out[conn.Type] = descriptors[0]
		for _, d := range descriptors[1:] {
			out[d.Name] = d
		}
	}
	return out, nil
}

// ConnectionsToTopics deduplicates connections by topic, visiting them in
// first-appearance order, and returns a mapping from topic to datatype. The
// result is a Go map, so it does not record that order. Fails with
// ErrTopicTypeConflict if two connections declare the same topic with
// different types (spec.md §4.7, §3.4).
func ConnectionsToTopics(conns *ConnectionTable) (map[string]string, error) {
	topics := make(map[string]string)
	for _, conn := range conns.InOrder() {
		if existing, ok := topics[conn.Topic]; ok {
			if existing != conn.Type {
				return nil, fmt.Errorf("%w: topic %q has types %q and %q", ErrTopicTypeConflict, conn.Topic, existing, conn.Type)
			}
			continue
		}
		topics[conn.Topic] = conn.Type
	}
	return topics, nil
}

// TopicCount is one topic's summary within a CountSummary.
type TopicCount struct {
	Topic    string
	Datatype string
	Count    uint64
}

// CountSummary is the result of MessageCounts.
type CountSummary struct {
	Topics []TopicCount
	Total  uint64
}

// MessageCounts sums the per-connection message counts recorded in
// chunkInfos, grouped by topic, per spec.md §4.7. It applies the same
// topic/type conflict rule as ConnectionsToTopics. Connection ids referenced
// by a ChunkInfo but absent from conns fail with ErrUnknownConnection.
func MessageCounts(chunkInfos []ChunkInfoRecord, conns *ConnectionTable) (*CountSummary, error) {
	type accum struct {
		datatype string
		count    uint64
	}
	byTopic := make(map[string]*accum)
	var order []string

	for _, ci := range chunkInfos {
		for _, cc := range ci.Connections {
			conn, ok := conns.ByID[cc.Conn]
			if !ok {
				return nil, fmt.Errorf("%w: %d", ErrUnknownConnection, cc.Conn)
			}

			a, exists := byTopic[conn.Topic]
			if !exists {
				a = &accum{datatype: conn.Type}
				byTopic[conn.Topic] = a
				order = append(order, conn.Topic)
			} else if a.datatype != conn.Type {
				return nil, fmt.Errorf("%w: topic %q has types %q and %q", ErrTopicTypeConflict, conn.Topic, a.datatype, conn.Type)
			}
			a.count += uint64(cc.Count)
		}
	}

	summary := &CountSummary{Topics: make([]TopicCount, 0, len(order))}
	for _, topic := range order {
		a := byTopic[topic]
		summary.Topics = append(summary.Topics, TopicCount{Topic: topic, Datatype: a.datatype, Count: a.count})
		summary.Total += a.count
	}
	return summary, nil
}
