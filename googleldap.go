package googleldap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	itls "github.com/DABSquared/google-apps-ldap-server/internal/tls"
	"github.com/DABSquared/google-apps-ldap-server/internal/toml"
	"github.com/DABSquared/google-apps-ldap-server/internal/version"
	"github.com/DABSquared/google-apps-ldap-server/pkg/auth"
	"github.com/DABSquared/google-apps-ldap-server/pkg/config"
	"github.com/DABSquared/google-apps-ldap-server/pkg/directory"
	"github.com/DABSquared/google-apps-ldap-server/pkg/frontend"
	"github.com/DABSquared/google-apps-ldap-server/pkg/handler"
	"github.com/DABSquared/google-apps-ldap-server/pkg/logging"
	"github.com/DABSquared/google-apps-ldap-server/pkg/namespace"
	"github.com/DABSquared/google-apps-ldap-server/pkg/server"
	"github.com/DABSquared/google-apps-ldap-server/pkg/stats"
	"github.com/DABSquared/google-apps-ldap-server/pkg/upstream"
)

var (
	log *slog.Logger

	activeConfig = &config.Config{}
)

// Start loads the configuration and runs the LDAP gateway until the
// context is canceled or a termination signal arrives.
func Start(ctx context.Context, configFile string) {
	var err error
	activeConfig, err = toml.NewConfig(configFile)
	if err != nil {
		fmt.Println("Configuration file error")
		fmt.Println(err)
		os.Exit(1)
	}

	log = logging.InitLogging(activeConfig.Debug, activeConfig.StructuredLog)
	toml.SetLogger(log)
	itls.SetLogger(log)

	startService(ctx)
}

func startService(ctx context.Context) {
	// stats
	stats.General.Set("version", stats.Stringer(version.Version))
	stats.General.Set("domain", stats.Stringer(activeConfig.Domain))

	// web API
	if activeConfig.API.Enabled {
		log.Info("Web API enabled")

		go frontend.RunAPI(
			frontend.Logger(log),
			frontend.Config(&activeConfig.API),
		)
	}

	ns, err := namespace.New(activeConfig.Domain)
	if err != nil {
		log.Error("invalid domain", "err", err)
		os.Exit(1)
	}

	client, err := upstream.NewGoogleClient(ctx, activeConfig.ClientSecretFile, log)
	if err != nil {
		log.Error("could not create Google directory client", "err", err)
		os.Exit(1)
	}

	engine, err := directory.NewEngine(log, ns, client, activeConfig.CacheSize)
	if err != nil {
		log.Error("could not create directory engine", "err", err)
		os.Exit(1)
	}

	if activeConfig.Preload {
		go engine.Preload(ctx)
	}

	authenticator := auth.NewAuthenticator(log, activeConfig.Domain, client)

	s, err := server.NewServer(
		server.Logger(log),
		server.Config(activeConfig),
		server.Handler(handler.NewGoogleHandler(ctx, log, activeConfig, engine, authenticator)),
	)
	if err != nil {
		log.Error("could not create server", "err", err)
		os.Exit(1)
	}

	go func() {
		if err := s.ListenAndServe(); err != nil {
			log.Error("could not start LDAP server", "err", err)
			os.Exit(1)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	// Block until we receive our signal.
	select {
	case <-c:
	case <-ctx.Done():
	}

	// Doesn't block if no connections, but will otherwise wait
	// until the timeout deadline.
	s.Shutdown()

	log.Info("AP exit")
	os.Exit(0)
}
