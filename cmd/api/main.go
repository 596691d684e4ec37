package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"kairos/internal/app"
	"kairos/internal/config"
	"kairos/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "конфигурация: %v\n", err)
		os.Exit(1)
	}

	a, err := app.New(cfg).Init(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "запуск: %v\n", err)
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		logger.Error("Приложение остановлено с ошибкой", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("Приложение остановлено")
}
