package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pipelined.dev/pipeline"
	"pipelined.dev/pipeline/elements"
)

// playOptions are shared by commands that play pipelines.
type playOptions struct {
	InspectSink string
	Probes      bool
	MetricsAddr string
}

func (o *playOptions) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&o.InspectSink, "inspect-sink", "", "Dump caps of the sink pad of named element on every state change")
	flags.BoolVar(&o.Probes, "probe", false, "Print the size of every buffer pushed through links")
	flags.StringVar(&o.MetricsAddr, "metrics-addr", "", "Serve prometheus metrics on the address, e.g. :9090")
}

func newLaunchCommand(out io.Writer) *cobra.Command {
	opts := &playOptions{}
	cmd := &cobra.Command{
		Use:   "launch DESCRIPTION...",
		Short: "Run pipeline from launch description",
		Example: `  pipeline launch videotestsrc num-buffers=100 ! autovideosink
  pipeline launch audiotestsrc num-buffers=20 ! wavsink location=sine.wav
  pipeline launch --inspect-sink sink videotestsrc ! video/x-raw,width=640 ! fakesink name=sink`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc := strings.Join(args, " ")
			return opts.play(cmd.Context(), out, func(c *pipeline.Context) (*pipeline.Pipeline, error) {
				return c.ParseLaunch(desc)
			})
		},
	}
	opts.register(cmd)
	return cmd
}

func newRunCommand(out io.Writer) *cobra.Command {
	opts := &playOptions{}
	var file string
	cmd := &cobra.Command{
		Use:   "run -f FILE",
		Short: "Run pipeline from YAML description",
		Example: `  pipeline run -f pipeline.yaml
  pipeline run -f pipeline.yaml --probe`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			d, err := pipeline.LoadDescription(f)
			f.Close()
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			return opts.play(cmd.Context(), out, func(c *pipeline.Context) (*pipeline.Pipeline, error) {
				return c.Build(d)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with pipeline description")
	cmd.MarkFlagRequired("file")
	opts.register(cmd)
	return cmd
}

// play initializes context, builds the pipeline and runs it to the end.
func (o *playOptions) play(ctx context.Context, out io.Writer, build func(*pipeline.Context) (*pipeline.Pipeline, error)) error {
	options := []pipeline.Option{pipeline.WithPlugins(elements.Plugin)}
	var reg *prometheus.Registry
	if o.MetricsAddr != "" {
		reg = prometheus.NewRegistry()
		options = append(options, pipeline.WithMetrics(reg))
	}
	c, err := pipeline.NewContext(options...)
	if err != nil {
		return err
	}
	if err := c.Init(); err != nil {
		return err
	}
	defer c.Deinit()

	if reg != nil {
		srv, err := serveMetrics(o.MetricsAddr, reg, c.Logger())
		if err != nil {
			return err
		}
		defer srv.Close()
	}

	runnerOptions := []pipeline.RunnerOption{pipeline.WithOutput(out)}
	if o.InspectSink != "" {
		runnerOptions = append(runnerOptions, pipeline.InspectSink(o.InspectSink))
	}
	if o.Probes {
		runnerOptions = append(runnerOptions, pipeline.WithProbes())
	}
	p, err := build(c)
	if err != nil {
		return err
	}
	return pipeline.NewRunner(c, runnerOptions...).Run(ctx, p)
}

// serveMetrics starts http server with metrics handler. Server must be
// closed by caller.
func serveMetrics(addr string, reg *prometheus.Registry, log logrus.FieldLogger) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("error listening metrics address: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warnf("metrics server failed: %v", err)
		}
	}()
	log.WithField("addr", ln.Addr().String()).Info("serving metrics")
	return srv, nil
}
