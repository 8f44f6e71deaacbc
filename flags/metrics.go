package flags

import "gopkg.in/urfave/cli.v1"

// MetricsFlags returns the Prometheus collector knobs layered on top of
// CommonFlags' --metrics/--metrics.addr/--metrics.port enable/listen trio.
func MetricsFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "metrics.namespace",
			Usage: "Prefix applied to every exported Prometheus metric name",
			Value: "chain_controller",
		},
	}
}
