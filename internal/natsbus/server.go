package natsbus

import (
	"fmt"
	"os"
	"time"

	"github.com/mtzanidakis/swarmlink/internal/config"
	natsserver "github.com/nats-io/nats-server/v2/server"
)

// Bus is the message bus swarmlink publishes to. It runs an embedded server
// unless an external URL is configured.
type Bus struct {
	server *natsserver.Server
	cfg    config.NATSConfig
}

func New(cfg config.NATSConfig) (*Bus, error) {
	if cfg.URL != "" {
		return &Bus{cfg: cfg}, nil
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create nats data dir: %w", err)
	}

	opts := &natsserver.Options{
		Port:     cfg.Port,
		NoLog:    true,
		NoSigs:   true,
		StoreDir: cfg.DataDir,
	}

	ns, err := natsserver.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create nats server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		return nil, fmt.Errorf("nats server not ready")
	}

	return &Bus{
		server: ns,
		cfg:    cfg,
	}, nil
}

func (b *Bus) ClientURL() string {
	if b.server == nil {
		return b.cfg.URL
	}
	return b.server.ClientURL()
}

// Embedded reports whether the bus runs its own server.
func (b *Bus) Embedded() bool {
	return b.server != nil
}

func (b *Bus) Close() {
	if b.server == nil {
		return
	}
	b.server.Shutdown()
	b.server.WaitForShutdown()
}
