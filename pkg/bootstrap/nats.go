package bootstrap

import (
	"net"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

const natsReadyTimeout = 10 * time.Second

// StartEmbeddedNATSServer runs an in-process NATS server on the default port
// and blocks until it accepts connections.
func StartEmbeddedNATSServer(logger *log.Logger) (*server.Server, error) {
	s, err := server.NewServer(&server.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "creating NATS server")
	}

	go s.Start()

	if !s.ReadyForConnections(natsReadyTimeout) {
		return nil, errors.New("NATS server not ready in time")
	}

	tcpAddr, ok := s.Addr().(*net.TCPAddr)
	if !ok {
		return nil, errors.New("unexpected NATS listener address type")
	}
	logger.Info("Started embedded NATS server", "port", tcpAddr.Port)
	return s, nil
}

func NewNatsClient(url string) (*nats.Conn, error) {
	return nats.Connect(url)
}
