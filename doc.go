/*
Package pipeline allows to build and run linear media pipelines.

Concept

A pipeline is a chain of elements with up to three roles:

    Source - produces buffers, e.g. videotestsrc;
    Filter - transforms buffers, e.g. capsfilter or rtppay;
    Sink - consumes buffers, e.g. fakesink or wavsink.

It implies the following constraints:

    There is exactly one Source and one Sink;
    There might be 0 to n Filters;
    Elements are linked in order through their pads.

Every element runs in its own goroutine while the pipeline is playing. It is
inspired with the pipeline pattern explained in the go blog
https://blog.golang.org/pipelines.

Context and elements

Elements are made by factories registered in the Context. Context must be
initialized before use and deinitialized when all pipelines are closed:

    c, err := pipeline.NewContext(pipeline.WithPlugins(elements.Plugin))
    err = c.Init()
    defer c.Deinit()

Pipeline can be built from launch description, where bare caps become a
capsfilter:

    p, err := c.ParseLaunch("videotestsrc num-buffers=10 ! video/x-raw,width=640 ! fakesink")

or from a list of element descriptions:

    p, err := c.Build(&pipeline.Description{
        Elements: []pipeline.ElementDesc{
            {Factory: "videotestsrc", Name: "test_src"},
            {Factory: "autovideosink", Name: "test_sink"},
        },
    })

States

Pipeline moves through Null, Ready, Paused and Playing states. Topology is
checked in Ready, caps are negotiated and elements are started in Paused
and buffers flow in Playing. Every step posts StateChanged messages on the
Bus of pipeline. The end of stream and errors are reported on the Bus as
well.

Execution

Runner plays the pipeline and handles the bus until the end of stream or
error:

    r := pipeline.NewRunner(c, pipeline.InspectSink("test_sink"))
    err := r.Run(ctx, p)

All failures are returned as typed errors: ParseError, LinkError,
StateChangeError and BusError.
*/
package pipeline
