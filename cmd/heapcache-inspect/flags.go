package main

// flags.go parses heapcache-inspect's command line. The teacher's original
// inspector called an undefined parseFlags/options pair — this fills that
// gap using the pack's pflag idiom (a FlagSet built up field by field, then
// Parse'd once) rather than the stdlib flag package.

import (
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"
)

type options struct {
	target           string
	watch            bool
	interval         time.Duration
	json             bool
	heapProfile      string
	goroutineProfile string
	version          bool
}

func parseFlags() *options {
	fs := flag.NewFlagSet("heapcache-inspect", flag.ExitOnError)

	opts := &options{}
	fs.StringVarP(&opts.target, "target", "t", "http://localhost:6060", "base URL of the target process's debug endpoints")
	fs.BoolVarP(&opts.watch, "watch", "w", false, "poll the snapshot endpoint repeatedly instead of once")
	fs.DurationVarP(&opts.interval, "interval", "i", 2*time.Second, "polling interval in watch mode")
	fs.BoolVar(&opts.json, "json", false, "print the raw JSON snapshot instead of a formatted summary")
	fs.StringVar(&opts.heapProfile, "heap-profile", "", "download a heap pprof profile to this path and exit")
	fs.StringVar(&opts.goroutineProfile, "goroutine-profile", "", "download a goroutine pprof profile to this path and exit")
	fs.BoolVarP(&opts.version, "version", "v", false, "print the inspector's version and exit")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "heapcache-inspect: dump Cache.Stats() from a running process's debug handler")
		fs.PrintDefaults()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	return opts
}
