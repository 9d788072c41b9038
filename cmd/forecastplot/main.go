package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/cactusdynamics/forecastplot"
	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
)

type options struct {
	Forecast string `short:"f" long:"forecast" description:"forecast table (csv or xlsx)" required:"true"`
	History  string `long:"history" description:"history table (csv or xlsx)"`
	Actual   string `long:"actual" description:"actual values table (csv or xlsx)"`
	Upper    string `long:"upper" description:"upper interval table (csv or xlsx)"`
	Lower    string `long:"lower" description:"lower interval table (csv or xlsx)"`

	TimestampCol string   `long:"timestamp-col" description:"timestamp column name" default:"timestamp"`
	Targets      []string `short:"t" long:"target" description:"target column, repeat for several" required:"true"`
	Var          string   `long:"var" description:"target to plot, by index or name" default:"0"`

	ShowInterval   bool `long:"show-interval" description:"shade the forecast interval"`
	IncludeHistory bool `long:"include-history" description:"draw the history before the forecast"`

	Static bool    `long:"static" description:"render a static image instead of an interactive page"`
	Width  float64 `long:"width" description:"static figure width in inches" default:"16"`
	Height float64 `long:"height" description:"static figure height in inches" default:"6"`
	NoGrid bool    `long:"no-grid" description:"hide the static grid"`
	Format string  `long:"format" description:"static image format" choice:"png" choice:"svg" default:"png"`

	Serve bool   `long:"serve" description:"publish on a figure server instead of opening a file"`
	Host  string `long:"host" description:"figure server host" default:"localhost"`
	Port  uint16 `long:"port" description:"figure server port" default:"5284"`

	Verbose bool `short:"v" long:"verbose" description:"debug logging"`
}

func parseOptions(args []string) (*options, error) {
	opts := &options{}
	parser := flags.NewParser(opts, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	return opts, nil
}

// loadRequest reads every table named in opts. The returned release function
// frees the loaded records.
func loadRequest(opts *options) (forecastplot.Request, func(), error) {
	var loaded []arrow.Record
	release := func() {
		for _, table := range loaded {
			table.Release()
		}
	}

	load := func(path string) (arrow.Record, error) {
		if path == "" {
			return nil, nil
		}
		table, err := forecastplot.LoadTable(path)
		if err != nil {
			return nil, err
		}
		loaded = append(loaded, table)
		return table, nil
	}

	req := forecastplot.Request{
		TimestampCol:   forecastplot.Cols(opts.TimestampCol),
		TargetCol:      forecastplot.Cols(opts.Targets...),
		VarID:          forecastplot.ParseSelector(opts.Var),
		ShowInterval:   opts.ShowInterval,
		IncludeHistory: opts.IncludeHistory,
	}

	var err error
	if req.Forecast, err = load(opts.Forecast); err != nil {
		release()
		return req, nil, err
	}
	if req.History, err = load(opts.History); err != nil {
		release()
		return req, nil, err
	}
	if req.Actual, err = load(opts.Actual); err != nil {
		release()
		return req, nil, err
	}

	if opts.Upper != "" || opts.Lower != "" {
		if opts.Upper == "" || opts.Lower == "" {
			release()
			return req, nil, errors.New("--upper and --lower must be given together")
		}
		interval := &forecastplot.Interval{}
		if interval.Upper, err = load(opts.Upper); err != nil {
			release()
			return req, nil, err
		}
		if interval.Lower, err = load(opts.Lower); err != nil {
			release()
			return req, nil, err
		}
		req.Interval = interval
	}

	return req, release, nil
}

func render(plotter *forecastplot.Plotter, req forecastplot.Request, opts *options) (*forecastplot.Figure, error) {
	if opts.Static {
		return plotter.RenderStatic(req,
			forecastplot.WithFigsize(opts.Width, opts.Height),
			forecastplot.WithGrid(!opts.NoGrid),
			forecastplot.WithFormat(opts.Format),
		)
	}
	return plotter.RenderInteractive(req)
}

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	req, release, err := loadRequest(opts)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load tables")
	}
	defer release()

	if !opts.Serve {
		fig, err := render(forecastplot.NewPlotter(&forecastplot.BrowserDisplayer{}), req, opts)
		if err != nil {
			logrus.WithError(err).Fatal("failed to plot")
		}
		logrus.WithField("title", fig.Title).Info("figure displayed")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	server := forecastplot.NewFigureServer(opts.Host, opts.Port, 16)
	server.OpenBrowser = true

	if _, err := render(forecastplot.NewPlotter(server), req, opts); err != nil {
		logrus.WithError(err).Fatal("failed to plot")
	}

	if err := server.Run(ctx); err != nil {
		logrus.WithError(err).Fatal("figure server failed")
	}
}
