package ws

import (
	"encoding/json"
	"time"
)

// clientMessage is the envelope for every JSON frame a client sends.
type clientMessage struct {
	Type    string         `json:"type"`
	Channel string         `json:"channel,omitempty"`
	Command string         `json:"command,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
}

type pongFrame struct {
	Type      string  `json:"type"`
	Timestamp float64 `json:"timestamp"`
}

type pingFrame struct {
	Type      string  `json:"type"`
	Timestamp float64 `json:"timestamp"`
}

type joinedChannelFrame struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

type commandResultFrame struct {
	Type    string         `json:"type"`
	Command string         `json:"command"`
	Result  string         `json:"result"`
	Args    map[string]any `json:"args,omitempty"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func newPongFrame(now time.Time) []byte {
	frame, _ := json.Marshal(pongFrame{
		Type:      "pong",
		Timestamp: float64(now.UnixNano()) / float64(time.Second),
	})
	return frame
}

func newPingFrame(now time.Time) []byte {
	frame, _ := json.Marshal(pingFrame{
		Type:      "ping",
		Timestamp: float64(now.UnixNano()) / float64(time.Second),
	})
	return frame
}

func newJoinedChannelFrame(channel string) []byte {
	frame, _ := json.Marshal(joinedChannelFrame{Type: "joined_channel", Channel: channel})
	return frame
}

func newCommandResultFrame(command string, args map[string]any) []byte {
	frame, _ := json.Marshal(commandResultFrame{
		Type:    "command_result",
		Command: command,
		Result:  "accepted",
		Args:    args,
	})
	return frame
}

func newErrorFrame(message string) []byte {
	frame, _ := json.Marshal(errorFrame{Type: "error", Error: message})
	return frame
}
