package types

import "fmt"

// CommandRequest é o payload enviado no subject de API do nó
type CommandRequest struct {
	Command string `json:"command"`
	Args    string `json:"args"`
}

const (
	SubjectChannelPark   = "freeswitch.events.channel.park"
	SubjectChannelHangup = "freeswitch.events.channel.hangup"
	SubjectChannelAnswer = "freeswitch.events.channel.answer"

	DefaultAPIPrefix = "freeswitch.api"
)

// DefaultEventSubjects são os eventos de ciclo de vida de canal
func DefaultEventSubjects() []string {
	return []string{SubjectChannelPark, SubjectChannelHangup, SubjectChannelAnswer}
}

// APISubject compõe o subject de request/reply de um nó
func APISubject(prefix, nodeID string) string {
	if prefix == "" {
		prefix = DefaultAPIPrefix
	}
	return fmt.Sprintf("%s.%s", prefix, nodeID)
}
