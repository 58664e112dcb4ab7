// Package bootstrap runs a service through its lifecycle: validate config,
// start infrastructure components, configure the components that depend on
// them, wait for a signal, then stop everything in reverse order.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*Config]) error {
//	    return a.RegisterComponent(worker)
//	})
//	err = app.Run(ctx)
package bootstrap
