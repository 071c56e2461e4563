package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"

	"gridsync/client"
	"gridsync/config"
	"gridsync/logging"
	"gridsync/server"
	"gridsync/transport"
)

// gridsync 入口：server 启动 HTTP + WebSocket 服务；client 连接远端服务器；
// local 在进程内起一个房间并通过回环连接游玩
func main() {
	var mode, addr, cfgPath string
	flag.StringVar(&mode, "mode", "server", "server | client | local")
	flag.StringVar(&addr, "addr", "", "override listen address (server) or server url (client)")
	flag.StringVar(&cfgPath, "config", "", "path to config file (yaml/json/toml)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch mode {
	case "server":
		err = runServer(ctx, cfgPath, addr)
	case "client":
		err = runClient(ctx, cfgPath, addr)
	case "local":
		err = runLocal(ctx, cfgPath)
	default:
		err = eris.Errorf("unknown mode %q", mode)
	}
	logging.SyncLogger()
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Log.Errorf("%s: %v", mode, err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context, cfgPath, addr string) error {
	cfg, err := config.LoadServer(cfgPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Addr = addr
	}
	// zap 日志写入文件（lumberjack 滚动）
	if err := logging.InitLogger(cfg.LogFile, cfg.LogLevel); err != nil {
		return err
	}

	rm := server.NewRoomManager(ctx, cfg)
	// 先预创建默认房间，便于快速试跑
	if _, err := rm.GetOrCreateRoom(cfg.RoomID); err != nil {
		return err
	}

	srv := &http.Server{Addr: cfg.Addr, Handler: server.NewRouter(rm)}
	errc := make(chan error, 1)
	go func() {
		logging.Log.Infof("%s listening on %s", cfg.ServerName, cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// 优雅退出（Ctrl+C）
	select {
	case err := <-errc:
		return eris.Wrap(err, "listen")
	case <-ctx.Done():
	}
	logging.Log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newClient(conn transport.Conn, cfg config.ClientConfig) (*client.Client, error) {
	src, err := client.NewBot(cfg.Bot, cfg.BotSeed)
	if err != nil {
		return nil, err
	}
	return client.New(conn, cfg.PlayerName, src)
}

func runClient(ctx context.Context, cfgPath, url string) error {
	cfg, err := config.LoadClient(cfgPath)
	if err != nil {
		return err
	}
	if url != "" {
		cfg.ServerURL = url
	}
	if err := logging.InitLogger(cfg.LogFile, cfg.LogLevel); err != nil {
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, err := transport.Dial(dialCtx, cfg.ServerURL)
	cancel()
	if err != nil {
		return err
	}
	c, err := newClient(conn, cfg)
	if err != nil {
		_ = conn.Close()
		return err
	}
	logging.Log.Infof("connected to %s as %s", cfg.ServerURL, cfg.PlayerName)
	return c.Run(ctx)
}

// runLocal 同进程内的服务端与客户端各自拥有独立的 World，只通过回环连接通信
func runLocal(ctx context.Context, cfgPath string) error {
	scfg, err := config.LoadServer(cfgPath)
	if err != nil {
		return err
	}
	ccfg, err := config.LoadClient(cfgPath)
	if err != nil {
		return err
	}
	if err := logging.InitLogger(ccfg.LogFile, ccfg.LogLevel); err != nil {
		return err
	}

	room, err := server.NewRoom(scfg.RoomID, scfg)
	if err != nil {
		return err
	}
	go room.Run(ctx)

	conn, err := server.ServeLocal(room)
	if err != nil {
		return err
	}
	c, err := newClient(conn, ccfg)
	if err != nil {
		return err
	}
	return c.Run(ctx)
}
