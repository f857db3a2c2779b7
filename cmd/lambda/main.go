package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/Appitzr-Project/Backend-Profile/internal/app"
	"github.com/Appitzr-Project/Backend-Profile/internal/config"
	"github.com/Appitzr-Project/Backend-Profile/internal/lambdaproxy"
	"github.com/Appitzr-Project/Backend-Profile/internal/logger"
)

func main() {
	cfg := config.MustLoad("")

	// Nothing scrapes a function instance.
	cfg.Metrics.Enabled = false

	log := logger.New(cfg.Log)

	application, err := app.New(context.Background(), cfg, log)
	if err != nil {
		log.WithError(err).Error("failed to initialize application")
		os.Exit(1)
	}

	lambda.Start(lambdaproxy.New(application.Handler).Proxy)
}
