package frontend

import (
	"expvar"
	"net/http"
	"os"

	itls "github.com/DABSquared/google-apps-ldap-server/internal/tls"
)

// RunAPI provides a basic REST API
func RunAPI(opts ...Option) {
	options := newOptions(opts...)
	log := options.Logger
	cfg := options.Config

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if cfg.Internals {
		mux.Handle("/debug/vars", expvar.Handler())
	}

	if cfg.TLS {
		certPEM, err := os.ReadFile(cfg.Cert)
		if err != nil {
			log.Error("could not read API certificate", "err", err)
			return
		}
		keyPEM, err := os.ReadFile(cfg.Key)
		if err != nil {
			log.Error("could not read API key", "err", err)
			return
		}
		tlsConfig, err := itls.MakeTLS(certPEM, keyPEM)
		if err != nil {
			log.Error("could not build API TLS config", "err", err)
			return
		}

		log.Info("Starting HTTPS server", "address", cfg.Listen)
		srv := &http.Server{Addr: cfg.Listen, Handler: mux, TLSConfig: tlsConfig}
		if err := srv.ListenAndServeTLS("", ""); err != nil {
			log.Error("error starting HTTPS server", "err", err)
		}
		return
	}

	log.Info("Starting HTTP server", "address", cfg.Listen)
	if err := http.ListenAndServe(cfg.Listen, mux); err != nil {
		log.Error("error starting HTTP server", "err", err)
	}
}
