package server

import (
	"log/slog"

	"github.com/DABSquared/google-apps-ldap-server/pkg/config"
	"github.com/DABSquared/google-apps-ldap-server/pkg/handler"
)

type Options struct {
	Logger  *slog.Logger
	Config  *config.Config
	Handler handler.Handler
}

type Option func(*Options)

func newOptions(opts ...Option) Options {
	opt := Options{}
	for _, o := range opts {
		o(&opt)
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	return opt
}

// Logger provides a logger to the server
func Logger(val *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = val
	}
}

// Config provides the loaded configuration to the server
func Config(val *config.Config) Option {
	return func(o *Options) {
		o.Config = val
	}
}

// Handler provides the LDAP backend handler to the server
func Handler(val handler.Handler) Option {
	return func(o *Options) {
		o.Handler = val
	}
}
