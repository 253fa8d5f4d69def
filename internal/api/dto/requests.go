package dto

type CommandRequest struct {
	Command string `json:"command"`
	Args    string `json:"args"`
}

type AnswerRequest struct {
	UUID        string `json:"uuid"`
	Destination string `json:"destination,omitempty"`
}

type HangupRequest struct {
	UUID  string `json:"uuid"`
	Cause string `json:"cause,omitempty"`
}

type TransferRequest struct {
	UUID      string `json:"uuid"`
	Extension string `json:"extension"`
	Context   string `json:"context,omitempty"`
}

type OriginateRequest struct {
	Endpoint    string `json:"endpoint"`
	Destination string `json:"destination"`
	Context     string `json:"context,omitempty"`
}
