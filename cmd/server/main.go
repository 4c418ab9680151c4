package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"windrig/internal/config"
	"windrig/internal/serial"
	"windrig/internal/server"
	"windrig/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "arquivo de configuração (padrão: $WINDRIG_CONFIG ou config.json)")
	listPorts := flag.Bool("list-ports", false, "lista as portas seriais disponíveis e sai")
	flag.Parse()

	logger.Init()

	if *listPorts {
		printPorts()
		return
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		logger.Fatal("Erro ao carregar configurações", err)
	}

	if err := logger.Configure(cfg.Log.Level, cfg.Log.Dir, cfg.Log.ToFile); err != nil {
		logger.Warnf("Configuração de log inválida, usando padrão: %v", err)
	}
	defer logger.Sync()

	displayBanner()

	logger.Infof("Configuração carregada: vento %s, sessão %v, tick %v, envio %v",
		cfg.Control.WindMode, cfg.Control.SessionLength.Duration,
		cfg.Control.TickInterval.Duration, cfg.Control.SendInterval.Duration)
	if cfg.Redis.Enabled {
		logger.Infof("Redis em %s:%d", cfg.Redis.Host, cfg.Redis.Port)
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		logger.Fatal("Erro ao criar servidor", err)
	}

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Erro ao iniciar o servidor", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Desligando servidor...")

	timeout := cfg.Server.ShutdownTimeout.Duration
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Erro durante o shutdown do servidor", err)
	}

	logger.Info("Servidor encerrado com sucesso")
}

// printPorts lista os dispositivos seriais para preencher a configuração
func printPorts() {
	devices, err := serial.ListDevices()
	if err != nil {
		logger.Fatal("Erro ao listar portas seriais", err)
	}
	if len(devices) == 0 {
		fmt.Println("Nenhuma porta serial encontrada")
		return
	}
	for _, d := range devices {
		fmt.Println(d)
	}
}

// displayBanner exibe um banner de inicialização
func displayBanner() {
	banner := `
 __      __ _            _   ____   _
 \ \    / /(_) _ _    __| | |  _ \ (_)  __ _
  \ \/\/ / | || ' \  / _  | | |_) || | / _  |
   \_/\_/  |_||_||_| \__,_| |_| \_\|_| \__, |
                                       |___/  CONTROL v` + server.Version + `
 `
	fmt.Println(banner)
	fmt.Printf("Iniciando em %s\n\n", time.Now().Format("2006-01-02 15:04:05"))
}
