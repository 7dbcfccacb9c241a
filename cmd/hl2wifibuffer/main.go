package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jimahlstrom/HL2WifiBuffer/internal/config"
	"github.com/jimahlstrom/HL2WifiBuffer/internal/jitbuf"
	"github.com/jimahlstrom/HL2WifiBuffer/internal/netdiscover"
	"github.com/jimahlstrom/HL2WifiBuffer/internal/relay"
	"github.com/jimahlstrom/HL2WifiBuffer/internal/sockio"
	"github.com/jimahlstrom/HL2WifiBuffer/internal/status"
)

const statusPort = ":8080"

func main() {
	configPath := flag.String("config", "hl2_wifi_buffer.yaml", "path to the YAML configuration file")
	debug := flag.Bool("debug", false, "log the parsed configuration at startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("hl2wifibuffer: %v", err)
	}

	if *debug {
		log.Printf("hl2wifibuffer: config hl2=%s wifi=%s delay=%dms used=%d",
			cfg.HL2Interface, cfg.WifiInterface, cfg.BufferMilliseconds, cfg.Used())
	}

	log.Printf("hl2wifibuffer: waiting for %s and %s to come up", cfg.HL2Interface, cfg.WifiInterface)
	hl2If, wifiIf, err := netdiscover.Wait(context.Background(), cfg.HL2Interface, cfg.WifiInterface)
	if err != nil {
		log.Fatalf("hl2wifibuffer: interface discovery: %v", err)
	}
	log.Printf("hl2wifibuffer: %s=%s %s=%s", hl2If.Name, hl2If.Addr, wifiIf.Name, wifiIf.Addr)

	socks, err := sockio.Open(hl2If.Addr)
	if err != nil {
		log.Fatalf("hl2wifibuffer: %v", err)
	}
	defer socks.Close()

	engine := jitbuf.New(cfg.Used())
	rates := status.NewRateJitter(time.Now())

	r := relay.New(engine, rates, socks.Radio, socks.Client1024, socks.Client1025)

	go r.RunUplink()
	go r.RunDownlink()
	go r.RunControl()

	statusServer := status.NewServer(engine, rates, status.Interfaces{
		HL2Name:  hl2If.Name,
		HL2Addr:  hl2If.Addr.String(),
		WifiName: wifiIf.Name,
		WifiAddr: wifiIf.Addr.String(),
	})
	statusAddr := wifiIf.Addr.String() + statusPort
	httpServer := &http.Server{Addr: statusAddr, Handler: statusServer.Mux()}
	go func() {
		log.Printf("hl2wifibuffer: status page on %s", statusAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("hl2wifibuffer: status server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("hl2wifibuffer: shutting down")
	r.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	httpServer.Shutdown(ctx)
}
