package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pipelined.dev/pipeline"
	"pipelined.dev/pipeline/caps"
	"pipelined.dev/pipeline/elements"
	"pipelined.dev/pipeline/log"
)

func newInspectCommand(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [FACTORY]",
		Short: "List available elements or show details of one",
		Example: `  pipeline inspect
  pipeline inspect videotestsrc`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := pipeline.NewContext(
				pipeline.WithLogger(log.Silent()),
				pipeline.WithPlugins(elements.Plugin),
			)
			if err != nil {
				return err
			}
			if err := c.Init(); err != nil {
				return err
			}
			defer c.Deinit()
			if len(args) == 0 {
				return listFactories(out, c.Registry())
			}
			return inspectFactory(out, c, args[0])
		},
	}
}

func listFactories(out io.Writer, r *pipeline.Registry) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, f := range r.Factories() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", f.Name, f.Klass, f.Description)
	}
	return w.Flush()
}

func inspectFactory(out io.Writer, c *pipeline.Context, name string) error {
	f, err := c.Registry().Lookup(name)
	if err != nil {
		return err
	}
	e, err := c.MakeElement(name, "")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Factory Details:\n  Name: %s\n  Klass: %s\n  Description: %s\n\n", f.Name, f.Klass, f.Description)

	fmt.Fprintln(out, "Pad Templates:")
	for _, p := range e.Pads() {
		fmt.Fprintf(out, "  %s template: '%s'\n", strings.ToUpper(p.Direction().String()), p.Name())
		if err := caps.Dump(out, p.Template(), "    "); err != nil {
			return err
		}
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Element Properties:")
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, p := range e.Properties() {
		fmt.Fprintf(w, "  %s\t%s\t%s", p.Name, p.Kind, p.Description)
		if p.Default != nil {
			fmt.Fprintf(w, " (default: %v)", p.Default)
		}
		if len(p.Choices) > 0 {
			fmt.Fprintf(w, " {%s}", strings.Join(p.Choices, ", "))
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}
