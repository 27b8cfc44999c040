package main

import (
	"bufio"
	"context"
	"log"
	"os"

	"github.com/rs/zerolog"

	"github.com/dmitrijs2005/projectstack-auth/internal/authctl"
	"github.com/dmitrijs2005/projectstack-auth/internal/logging"
	"github.com/dmitrijs2005/projectstack-auth/internal/server"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/config"
)

func main() {

	if len(os.Args) < 2 {
		authctl.Usage(os.Stderr)
		os.Exit(2)
	}

	ctx := context.Background()
	cfg := config.LoadConfig()

	logger := logging.NewZerologLogger(os.Stderr, zerolog.WarnLevel)
	app, err := server.NewAppWithLogger(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer app.Close(ctx)

	cmd := authctl.New(app.AuthService(), bufio.NewReader(os.Stdin), os.Stdout)
	if err := cmd.Run(ctx, os.Args[1], os.Args[2:]); err != nil {
		log.Printf("%v", err)
		app.Close(ctx)
		os.Exit(1)
	}

}
