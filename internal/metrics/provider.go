package metrics

import "time"

// Recorder é o que os componentes do relay enxergam de métricas
type Recorder interface {
	SetBusConnected(connected bool)
	SetSinks(n int)
	EventReceived(subject string)
	EventDropped(subject string)
	SinkWriteFailed()
	CommandCompleted(command, outcome string, d time.Duration)
}

type Noop struct{}

func (Noop) SetBusConnected(bool)                           {}
func (Noop) SetSinks(int)                                   {}
func (Noop) EventReceived(string)                           {}
func (Noop) EventDropped(string)                            {}
func (Noop) SinkWriteFailed()                               {}
func (Noop) CommandCompleted(string, string, time.Duration) {}
