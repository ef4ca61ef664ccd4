package notifications

import (
	"errors"

	"userhub/pkg/rabbitmq"
)

// ErrTransportUnavailable is returned by the unavailable transport variant.
// Callers log it; it never drives the control flow of a CRUD mutation.
var ErrTransportUnavailable = errors.New("messaging transport unavailable")

// PushTransport models the optionally-available messaging backend. Instead of
// nil-checking a lazily-loaded client, callers hold one of two variants:
// a broker-backed transport or the unavailable one.
type PushTransport interface {
	Available() bool
	Publish(queue string, body []byte) error
	DeclareChannel(name string) error
}

type brokerTransport struct {
	client *rabbitmq.Client
}

// NewBrokerTransport wraps a connected broker client as an available
// transport.
func NewBrokerTransport(client *rabbitmq.Client) PushTransport {
	return &brokerTransport{client: client}
}

func (t *brokerTransport) Available() bool {
	return true
}

func (t *brokerTransport) Publish(queue string, body []byte) error {
	return t.client.Publish(queue, body)
}

func (t *brokerTransport) DeclareChannel(name string) error {
	return t.client.DeclareQueue(name)
}

type unavailableTransport struct{}

// UnavailableTransport is the variant used when the broker could not be
// reached at startup. Every operation fails with ErrTransportUnavailable.
func UnavailableTransport() PushTransport {
	return unavailableTransport{}
}

func (unavailableTransport) Available() bool {
	return false
}

func (unavailableTransport) Publish(string, []byte) error {
	return ErrTransportUnavailable
}

func (unavailableTransport) DeclareChannel(string) error {
	return ErrTransportUnavailable
}
