package dispatch

import (
	"github.com/crashfeed/reporter/internal/service/models/report"
)

// Message is one instruction consumed by the dispatch worker. Exactly one
// message is processed per loop iteration, in submission order.
type Message interface {
	isMessage()
}

// Shutdown asks the worker to perform a final full drain and stop.
type Shutdown struct{}

// Configure carries the bootstrap parameters. Only the first Configure is
// honored; later ones are ignored.
type Configure struct {
	Endpoint           string
	APIKey             string
	PersistenceEnabled bool
}

// Submit queues one record for persistence and delivery.
type Submit struct {
	Record report.Record
}

func (Shutdown) isMessage()  {}
func (Configure) isMessage() {}
func (Submit) isMessage()    {}
