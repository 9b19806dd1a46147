package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

const natsReadyTimeout = 10 * time.Second

// newNATSServer builds a loopback server on a random port with JetStream stored under dir
func newNATSServer(dir string) (*server.Server, error) {
	s, err := server.NewServer(&server.Options{
		Host:           "127.0.0.1",
		Port:           server.RANDOM_PORT,
		NoLog:          true,
		NoSigs:         true,
		MaxControlLine: 4096,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create nats server: %w", err)
	}
	if err := s.EnableJetStream(&server.JetStreamConfig{StoreDir: dir}); err != nil {
		return nil, fmt.Errorf("failed to enable jetstream: %w", err)
	}
	return s, nil
}

// StartJetStream runs an in-process JetStream server for the notification bus tests.
// The returned cleanup closes the client connection before shutting the server down.
func StartJetStream(t *testing.T) (*server.Server, nats.JetStreamContext, func()) {
	t.Helper()

	s, err := newNATSServer(t.TempDir())
	require.NoError(t, err)

	go s.Start()
	if !s.ReadyForConnections(natsReadyTimeout) {
		s.Shutdown()
		t.Fatal("nats server not ready")
	}

	nc, err := nats.Connect(s.ClientURL(), nats.Name("console-test"), nats.Timeout(5*time.Second))
	require.NoError(t, err)

	js, err := nc.JetStream(nats.MaxWait(5 * time.Second))
	require.NoError(t, err)

	return s, js, func() {
		nc.Close()
		s.Shutdown()
	}
}

// WaitForStream polls until the named stream exists or timeout elapses
func WaitForStream(t *testing.T, js nats.JetStreamContext, name string, timeout time.Duration) error {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		_, err := js.StreamInfo(name)
		switch {
		case err == nil:
			return nil
		case err != nats.ErrStreamNotFound:
			return err
		case time.Now().After(deadline):
			return fmt.Errorf("stream %s not created within %s", name, timeout)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// ConsumeMessages replays everything stored on subject and keeps collecting until window elapses
func ConsumeMessages(js nats.JetStreamContext, subject string, window time.Duration) ([][]byte, error) {
	received := make(chan []byte, 100)
	sub, err := js.Subscribe(subject, func(msg *nats.Msg) {
		received <- msg.Data
	}, nats.DeliverAll())
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	defer sub.Unsubscribe()

	var payloads [][]byte
	timeout := time.After(window)
	for {
		select {
		case data := <-received:
			payloads = append(payloads, data)
		case <-timeout:
			return payloads, nil
		}
	}
}
