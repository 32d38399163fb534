// Package bootstrap runs a queuekit binary: it applies config defaults,
// initializes logging, starts registered components, runs hooks, and shuts
// everything down on signal or when a finite task ends.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(telemetry)
//	err = app.RunTask(ctx, func(ctx context.Context) error {
//	    _, err := orch.Run(ctx, sink)
//	    return err
//	})
package bootstrap
