package frontend

import (
	"log/slog"

	"github.com/DABSquared/google-apps-ldap-server/pkg/config"
)

type Options struct {
	Logger *slog.Logger
	Config *config.API
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

// Logger provides a logger to the web API
func Logger(val *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = val
	}
}

// Config provides the API section of the configuration
func Config(val *config.API) Option {
	return func(o *Options) {
		o.Config = val
	}
}
