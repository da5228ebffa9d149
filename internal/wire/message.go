// Package wire defines the JSON frames exchanged between the hub and its
// participants.
//
// A frame either carries an action envelope for one container type or a
// protocol command (connect, open, close, ping and the server's
// notification and pong replies).
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/starcore/internal/action"
)

// MessageType tags a frame.
type MessageType string

const (
	TypeAction  MessageType = "action"
	TypeCommand MessageType = "command"
)

// Message is one transport frame.
type Message struct {
	Type      MessageType      `json:"type"`
	Container string           `json:"container,omitempty"`
	Seq       int64            `json:"seq,omitempty"`
	Envelope  *action.Envelope `json:"envelope,omitempty"`
	Command   *Command         `json:"command,omitempty"`
}

// CommandName identifies a protocol command.
type CommandName string

const (
	CmdConnect      CommandName = "connect"
	CmdOpen         CommandName = "open"
	CmdClose        CommandName = "close"
	CmdPing         CommandName = "ping"
	CmdPong         CommandName = "pong"
	CmdNotification CommandName = "notification"
)

// Command is a protocol-control message. Only the fields of its Name are set.
type Command struct {
	Name       CommandName `json:"name"`
	ClientType ClientType  `json:"client_type,omitempty"`
	Module     string      `json:"module,omitempty"`
	InstanceID string      `json:"instance_id,omitempty"`
	Message    string      `json:"message,omitempty"`
	Title      string      `json:"title,omitempty"`
	Body       string      `json:"body,omitempty"`
}

// ClientType is the kind of participant announced by connect.
type ClientType string

const (
	ClientBrowser ClientType = "browser"
	ClientDesktop ClientType = "desktop"
	ClientMobile  ClientType = "mobile"
)

// ValidClientTypes lists the accepted participant kinds.
var ValidClientTypes = []ClientType{ClientBrowser, ClientDesktop, ClientMobile}

// ParseClientType validates s.
func ParseClientType(s string) (ClientType, error) {
	for _, ct := range ValidClientTypes {
		if string(ct) == s {
			return ct, nil
		}
	}
	return "", fmt.Errorf("invalid client type %q (valid: browser, desktop, mobile)", s)
}

// ActionMessage frames an envelope for containerType.
func ActionMessage(containerType string, seq int64, env action.Envelope) Message {
	return Message{Type: TypeAction, Container: containerType, Seq: seq, Envelope: &env}
}

// CommandMessage frames a command.
func CommandMessage(cmd Command) Message {
	return Message{Type: TypeCommand, Command: &cmd}
}

// Encode serializes m.
func Encode(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// Decode parses and validates one frame. Unknown fields are rejected.
func Decode(data []byte) (Message, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var m Message
	if err := dec.Decode(&m); err != nil {
		return Message{}, fmt.Errorf("decode frame: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Validate checks that the fields required by m.Type are present.
func (m Message) Validate() error {
	switch m.Type {
	case TypeAction:
		if m.Container == "" {
			return fmt.Errorf("action frame: container is required")
		}
		if m.Envelope == nil {
			return fmt.Errorf("action frame: envelope is required")
		}
		if m.Command != nil {
			return fmt.Errorf("action frame: unexpected command")
		}
	case TypeCommand:
		if m.Command == nil {
			return fmt.Errorf("command frame: command is required")
		}
		if m.Envelope != nil {
			return fmt.Errorf("command frame: unexpected envelope")
		}
		return m.Command.validate()
	default:
		return fmt.Errorf("unknown frame type %q", m.Type)
	}
	return nil
}

func (c *Command) validate() error {
	switch c.Name {
	case CmdConnect:
		_, err := ParseClientType(string(c.ClientType))
		return err
	case CmdOpen:
		if c.Module == "" {
			return fmt.Errorf("open: module is required")
		}
	case CmdClose:
		if c.InstanceID == "" {
			return fmt.Errorf("close: instance_id is required")
		}
	case CmdPing, CmdPong, CmdNotification:
	default:
		return fmt.Errorf("unknown command %q", c.Name)
	}
	return nil
}
