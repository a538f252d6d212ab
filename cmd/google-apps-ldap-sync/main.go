package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	itoml "github.com/DABSquared/google-apps-ldap-server/internal/toml"
	"github.com/DABSquared/google-apps-ldap-server/pkg/logging"
	"github.com/DABSquared/google-apps-ldap-server/pkg/syncer"
	"github.com/DABSquared/google-apps-ldap-server/pkg/upstream"
)

func main() {
	configFile := flag.String("config", "googleldap.cfg", "path to the configuration file")
	flag.Parse()

	cfg, err := itoml.NewConfig(*configFile)
	if err != nil {
		fmt.Println("Configuration file error")
		fmt.Println(err)
		os.Exit(1)
	}
	if cfg.Sync.Server == "" || cfg.Sync.BaseDN == "" {
		fmt.Println("the [sync] section requires both 'server' and 'basedn'")
		os.Exit(1)
	}

	log := logging.InitLogging(cfg.Debug, cfg.StructuredLog)
	itoml.SetLogger(log)

	ctx := context.Background()

	client, err := upstream.NewGoogleClient(ctx, cfg.ClientSecretFile, log)
	if err != nil {
		log.Error("could not create Google directory client", "err", err)
		os.Exit(1)
	}

	conn, err := syncer.Connect(cfg.Sync)
	if err != nil {
		log.Error("could not connect to target directory", "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := syncer.New(log, client, conn, cfg.Sync.BaseDN).Run(ctx); err != nil {
		log.Error("sync aborted", "err", err)
		os.Exit(1)
	}
}
