package main

import (
	"errors"
	"flag"
	"fmt"

	"github.com/linnemanlabs/go-core/httpmw"
	"github.com/linnemanlabs/go-core/httpserver"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/opshttp"
	"github.com/linnemanlabs/go-core/otelx"
	"github.com/linnemanlabs/go-core/prof"

	vc "github.com/linnemanlabs/helpdesk/internal/cfg"
)

// envPrefix namespaces environment overrides, e.g. HELPDESK_DATABASE_URL.
const envPrefix = "HELPDESK_"

// options gathers the flag-backed config of every package the server uses.
type options struct {
	app   vc.Config
	http  httpserver.Config
	mw    httpmw.Config
	log   log.Config
	ops   opshttp.Config
	prof  prof.Config
	trace otelx.Config
}

func (o *options) register(fs *flag.FlagSet) {
	o.app.RegisterFlags(fs)
	o.http.RegisterFlags(fs)
	o.mw.RegisterFlags(fs)
	o.log.RegisterFlags(fs)
	o.ops.RegisterFlags(fs)
	o.prof.RegisterFlags(fs)
	o.trace.RegisterFlags(fs)
}

// validate reports every invalid field at once, plus the checks that span
// packages.
func (o *options) validate() error {
	errs := []error{
		o.app.Validate(),
		o.http.Validate(),
		o.mw.Validate(),
		o.log.Validate(),
		o.ops.Validate(),
		o.prof.Validate(),
		o.trace.Validate(),
	}
	if o.app.APIPort == o.ops.Port {
		errs = append(errs, fmt.Errorf("http and admin ports must differ (both %d)", o.app.APIPort))
	}
	return errors.Join(errs...)
}
