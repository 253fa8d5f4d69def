package types

import "time"

// ChannelEvent é o formato que o nó publica nos subjects de canal. O relay
// não depende dele (repassa o JSON como veio); o test-node usa para gerar
// eventos sintéticos.
type ChannelEvent struct {
	EventName    string    `json:"event_name"`
	UniqueID     string    `json:"unique_id"`
	CallerIDName string    `json:"caller_id_name,omitempty"`
	CallerIDNum  string    `json:"caller_id_number,omitempty"`
	DestNumber   string    `json:"destination_number,omitempty"`
	ChannelState string    `json:"channel_state,omitempty"`
	HangupCause  string    `json:"hangup_cause,omitempty"`
	NodeID       string    `json:"node_id"`
	Timestamp    time.Time `json:"timestamp"`
}

// CommandReply é a resposta padrão do nó ao request de API
type CommandReply struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Data      string `json:"data,omitempty"`
	NodeID    string `json:"node_id"`
	Timestamp int64  `json:"timestamp"`
}
