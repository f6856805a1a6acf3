// Package msgdef provides a default implementation of the "parse message
// definition" collaborator spec.md §1 keeps external to the bag codec: a
// plain-text ROS .msg definition grammar, where a Connection record's
// message_definition field may concatenate several named type definitions
// separated by a "================================================================================"
// line followed by "MSG: pkg/Type".
package msgdef

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/nsourish/rosbag"
)

const sectionSeparator = "================================================================================"

// Parse implements rosbag.MessageDefinitionParser: it splits text into
// sections (the first section is the connection's own, top-level type; each
// subsequent section is introduced by a "MSG: pkg/Type" line naming a
// dependency) and parses each section's field list.
func Parse(text string) ([]rosbag.MessageTypeDescriptor, error) {
	sections := strings.Split(text, sectionSeparator)

	descriptors := make([]rosbag.MessageTypeDescriptor, 0, len(sections))
	for i, section := range sections {
		name, fields, err := parseSection(section, i == 0)
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", i, err)
		}
		descriptors = append(descriptors, rosbag.MessageTypeDescriptor{Name: name, Fields: fields})
	}
	return descriptors, nil
}

// parseSection returns the type name declared by a "MSG: pkg/Type" line (for
// non-leading sections) and the flat list of field declarations, skipping
// blank lines and comments ('#'). Constant declarations (which contain '=')
// are kept as fields; see parseFieldLine.
func parseSection(section string, leading bool) (string, []rosbag.MessageFieldDescriptor, error) {
	scanner := bufio.NewScanner(strings.NewReader(section))

	var name string
	var fields []rosbag.MessageFieldDescriptor
	for scanner.Scan() {
		line := strings.TrimSpace(stripComment(scanner.Text()))
		if line == "" {
			continue
		}

		if !leading && name == "" {
			const marker = "MSG:"
			if strings.HasPrefix(line, marker) {
				name = strings.TrimSpace(strings.TrimPrefix(line, marker))
				continue
			}
		}

		fields = append(fields, parseFieldLine(line))
	}
	if err := scanner.Err(); err != nil {
		return "", nil, err
	}
	return name, fields, nil
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i != -1 {
		return line[:i]
	}
	return line
}

// parseFieldLine handles both "type name" field declarations and "type name
// = value" constant declarations; constants are recorded as fields whose
// Type carries the declared type (the codec doesn't need constant values).
func parseFieldLine(line string) rosbag.MessageFieldDescriptor {
	if i := strings.IndexByte(line, '='); i != -1 {
		line = strings.TrimSpace(line[:i])
	}
	parts := strings.Fields(line)
	if len(parts) < 2 {
		return rosbag.MessageFieldDescriptor{Name: line}
	}
	return rosbag.MessageFieldDescriptor{Type: parts[0], Name: parts[1]}
}
