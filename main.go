package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"drift/client"
	"drift/protocol"
	"drift/server"
	"drift/transport"
	"drift/transport/udp"
	"drift/transport/ws"
	"drift/utils"
)

func dial(ctx context.Context, cfg *utils.Config, tcfg transport.Config, logger *zap.SugaredLogger) (transport.Client, error) {
	switch cfg.Net.Transport {
	case "ws":
		return ws.Dial(ctx, cfg.Client.Server, tcfg, logger)
	default:
		return udp.Dial(cfg.Client.Server, tcfg, logger)
	}
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "server" {
		if err := server.Start(os.Args[1:]); err != nil {
			log.Fatal(err)
		}
		return
	}

	cfg, err := utils.LoadConfig("config.toml")
	if err != nil {
		log.Fatal(err)
	}
	logger := utils.NewLogger(cfg.Log)
	defer logger.Sync()

	tcfg := transport.Config{
		Channels: int(protocol.ChannelCount),
		Version:  protocol.Version,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr, err := dial(ctx, cfg, tcfg, logger)
	if err != nil {
		// No server reachable; spin one up in-process and try again.
		logger.Infow("dial failed, starting a local server", "error", err)
		go func() {
			if err := server.Start(nil); err != nil {
				logger.Fatalw("local server", "error", err)
			}
		}()
		time.Sleep(200 * time.Millisecond)
		tr, err = dial(ctx, cfg, tcfg, logger)
		if err != nil {
			logger.Fatalw("connect", "error", err)
		}
	}

	c := client.New(tr, client.LogView{Log: logger}, client.NewPatrol(time.Second), logger)
	defer c.Close()

	if err := c.Run(ctx, cfg.Client.TickRate); err != nil {
		logger.Fatalw("client", "error", err)
	}
}
