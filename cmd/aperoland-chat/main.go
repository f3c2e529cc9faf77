package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aperoland/aperoland-chat/config"
	"github.com/aperoland/aperoland-chat/globals"
	"github.com/aperoland/aperoland-chat/persistence"
	"github.com/aperoland/aperoland-chat/web"
	"github.com/aperoland/aperoland-chat/ws"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/pflag"
)

const shutdownTimeout = 10 * time.Second

var (
	configPath = pflag.StringP("config", "c", "", "path to config file or directory")
)

func main() {
	flagSet := config.GetFlagSet()
	pflag.CommandLine.AddFlagSet(flagSet)
	pflag.Parse()

	globalConfig, err := config.ReadConfiguration(*configPath, flagSet)
	if err != nil {
		panic(err)
	}
	globals.AppLogger.SetLevel(hclog.LevelFromString(globalConfig.LogLevel))

	gateway, err := persistence.NewGateway(globalConfig)
	if err != nil {
		panic(err)
	}
	defer gateway.Close()

	history, err := persistence.NewCachedGateway(gateway, globalConfig.HistoryConfig.CacheSize)
	if err != nil {
		panic(err)
	}

	if globalConfig.HistoryConfig.Retention > 0 {
		job, err := persistence.NewRetentionJob(history, globalConfig.HistoryConfig.Retention, globalConfig.HistoryConfig.PurgeSpec)
		if err != nil {
			panic(err)
		}
		job.Start()
		defer job.Stop()
	}

	hub, err := ws.NewHub(globalConfig, history)
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go hub.Run(ctx)

	server := web.NewHTTPServer(globalConfig.Addr, web.NewServer(globalConfig, hub, history).Router())
	go func() {
		<-ctx.Done()
		globals.AppLogger.Info("shutting down")
		if err := web.Shutdown(server, shutdownTimeout); err != nil {
			globals.AppLogger.Error("http server shutdown error", "error", err)
		}
	}()

	globals.AppLogger.Info("listening", "addr", globalConfig.Addr)
	if globalConfig.SSLCert != "" && globalConfig.SSLKey != "" {
		err = server.ListenAndServeTLS(globalConfig.SSLCert, globalConfig.SSLKey)
	} else {
		err = server.ListenAndServe()
	}
	if !errors.Is(err, http.ErrServerClosed) {
		globals.AppLogger.Error("stopped listening", "error", err)
	}
	stop()
	<-hub.Done()
}
