package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// CommandList is a shell command list that unmarshals from either a single
// scalar or a sequence, matching the usual CI configuration shorthand:
//
//	script: tox
//	script: [tox, tox -e docs]
type CommandList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *CommandList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var single string
		if err := node.Decode(&single); err != nil {
			return err
		}
		*c = CommandList{single}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*c = CommandList(list)
		return nil
	default:
		return fmt.Errorf("line %d: command list must be a string or a sequence", node.Line)
	}
}
