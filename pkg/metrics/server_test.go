package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestNewServer(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	server := NewServer("0", logger)
	if server == nil {
		t.Fatal("expected non-nil server")
	}
	if server.server.Addr != ":0" {
		t.Errorf("Addr = %q, want :0", server.server.Addr)
	}
}

func TestServerStartStop(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	server := NewServer("0", logger)
	server.StartAsync()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}
