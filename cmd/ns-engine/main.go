package main

import (
	"Go2NetSentinel/internal/api"
	"Go2NetSentinel/internal/config"
	"Go2NetSentinel/internal/engine/manager"
	"Go2NetSentinel/internal/logging"
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file (.yaml or .toml).")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logging.Setup(cfg.Log)
	log.Println("Starting ns-engine...")

	// 2. Assemble the pipeline
	mgr, err := manager.NewManager(cfg)
	if err != nil {
		log.Fatalf("Failed to create manager: %v", err)
	}
	health := api.NewHealthServer(mgr.Holder())
	server := api.NewServer(cfg.API, api.Deps{
		Holder: mgr.Holder(),
		Queue:  mgr.Queue(),
		Events: mgr.Events(),
		Hub:    mgr.Hub(),
		Health: health,
	})

	// 3. Start the pipeline and both listeners
	mgr.Start()

	healthCtx, stopHealth := context.WithCancel(context.Background())
	go health.Run(healthCtx, 10*time.Second)

	grpcServer := grpc.NewServer()
	health.Register(grpcServer)
	lis, err := net.Listen("tcp", cfg.API.GrpcListenAddr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", cfg.API.GrpcListenAddr, err)
	}
	go func() {
		log.Printf("gRPC health server starting on %s", cfg.API.GrpcListenAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Errorf("Failed to serve gRPC: %v", err)
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.API.HttpListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("HTTP server starting on %s", cfg.API.HttpListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", httpServer.Addr, err)
		}
	}()

	// 4. Wait for a shutdown signal for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("Shutdown signal received, stopping servers...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace())
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warnf("HTTP server forced to shutdown: %v", err)
	}
	stopHealth()
	grpcServer.GracefulStop()

	mgr.Stop()
	log.Println("Shutdown complete.")
}
