// Package telemetry wires structured logging (zerolog), tracing
// (OpenTelemetry) and metrics (Prometheus) for the qlikcloud CLI.
//
// Initialize telemetry once per process:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.Metrics.TextfilePath = "/var/lib/node_exporter/qlikcloud.prom"
//
//	tel, err := telemetry.New(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Packages that log take a zerolog.Logger; hand them a component child:
//
//	log := tel.Logger.NewComponentLogger("tenant").Zerolog()
//
// Metrics implements both tenant.Observer and playbook.Recorder, so the same
// value is passed to the tenant client and the playbook runner. The CLI is
// short lived, so metrics are not served over HTTP: Shutdown writes them to
// the configured textfile for the node exporter textfile collector.
//
// When tracing is enabled the tracer provider is installed globally. The
// playbook runner and the otelhttp transport of the tenant client pick it up
// through otel.Tracer without further wiring.
package telemetry
