package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"keyholder/engine/actors"
	"keyholder/engine/library"
	"keyholder/engine/metrics"
	"keyholder/messaging/eventconductor"
	"keyholder/messaging/relays"
	"keyholder/state/identity"
	"keyholder/state/ledger"
)

func main() {
	// Various aspect of this application require global and local settings. To keep things
	// clean and tidy we put these settings in a Viper configuration.
	conf := viper.New()

	// Now we initialise this configuration with basic settings that are required on startup.
	actors.InitConfig(conf)
	// make the config accessible globally
	actors.SetConfig(conf)
	fmt.Println("CURRENT CONFIG")
	for k, v := range actors.MakeOrGetConfig().AllSettings() {
		fmt.Printf("\nKey: %s; Value: %v\n", k, v)
	}
	relayURLs := conf.GetStringSlice("relays")
	if len(relayURLs) == 0 {
		library.LogCLI("no relays configured", 0)
		os.Exit(1)
	}

	l := ledger.New()
	if genesis := conf.GetInt64("operatorBalance"); genesis > 0 {
		if err := l.Credit(actors.MyAddress(), big.NewInt(genesis)); err != nil {
			library.LogCLI(err.Error(), 0)
		}
	}
	directory := identity.NewDirectory(l)
	handler := identity.NewHandler(directory, conf.GetInt("eventKind"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if !conf.GetBool("doNotPublish") {
		publish := relays.StartPublisher(ctx, relayURLs)
		directory.Subscribe(func(n identity.Notification) {
			e, err := actors.SignedNotification(n)
			if err != nil {
				library.LogCLI(err.Error(), 1)
				return
			}
			select {
			case publish <- e:
				metrics.NotificationsPublished.Inc()
			case <-ctx.Done():
			}
		})
	}
	if addr := conf.GetString("metricsAddr"); addr != "" {
		go serveMetrics(addr)
	}

	eventconductor.Start(handler, relayURLs[0], conf.GetInt("eventKind"))

	library.LogCLI(fmt.Sprintf("operator %s is at %s", actors.MyWallet().Account, actors.MyAddress().Hex()), 4)
	interrupt := make(chan struct{})
	go cliListener(interrupt, directory)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	select {
	case <-interrupt:
	case <-signals:
	}
	actors.Shutdown()
	fmt.Println("Bye")
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	library.LogCLI("serving metrics on "+addr, 4)
	if err := http.ListenAndServe(addr, mux); err != nil {
		library.LogCLI(err.Error(), 1)
	}
}
