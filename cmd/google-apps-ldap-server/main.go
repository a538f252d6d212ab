package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	googleldap "github.com/DABSquared/google-apps-ldap-server"
	"github.com/DABSquared/google-apps-ldap-server/internal/version"
)

func main() {
	configFile := flag.String("config", "googleldap.cfg", "path to the configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Version)
		os.Exit(0)
	}

	googleldap.Start(context.Background(), *configFile)
}
