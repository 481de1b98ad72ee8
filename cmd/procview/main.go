package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/chosenoffset/procview/pkg/procview"
	"github.com/chosenoffset/procview/pkg/procview/decode"
)

const appName = "procview"

var commands = []string{"memory", "cpu", "ps", "net", "misc", "all", "decode", "serve", "repl", "help"}

func usage(w io.Writer) {
	fmt.Fprintf(w, `Usage: %s <command> [flags]

Commands:
  memory        decode /proc/meminfo
  cpu           decode /proc/cpuinfo
  ps            decode /proc/[pid]/stat for every process
  net           read /sys/class/net/*/statistics
  misc          uptime and clock ticks
  all           every probe as one snapshot
  decode FILE   decode any key: value file into records ("-" reads stdin)
  serve         run the monitor and dashboard
  repl          interactive shell

Common flags:
  -config FILE  YAML config (default: none)
  -env FILE     .env file with PROCVIEW_* overrides (default: .env)
  -root DIR     procfs root (overrides config)
  -format F     json or yaml (default: json)
`, appName)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "-h", "--help", "help":
		usage(stdout)
		return 0
	}
	if !isCommand(cmd) {
		fmt.Fprintf(stderr, "%s: unknown command %q\n", appName, cmd)
		if s := suggest(cmd, commands); s != "" {
			fmt.Fprintf(stderr, "Did you mean %q?\n", s)
		}
		return 2
	}

	opts, fs := newFlags(cmd, stderr)
	if err := fs.Parse(rest); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	cfg, err := opts.config()
	if err != nil {
		fmt.Fprintln(stderr, red(err.Error()))
		return 1
	}
	format, err := parseFormat(opts.format)
	if err != nil {
		fmt.Fprintln(stderr, red(err.Error()))
		return 2
	}

	switch cmd {
	case "decode":
		if fs.NArg() != 1 {
			fmt.Fprintf(stderr, "usage: %s decode [-sequence] FILE\n", appName)
			return 2
		}
		err = cmdDecode(fs.Arg(0), opts.sequence, format, stdin, stdout)
	case "serve":
		err = cmdServe(ctx, cfg, stderr)
	case "repl":
		err = cmdRepl(ctx, cfg, format, stdout, stderr)
	default:
		err = cmdProbe(ctx, cmd, cfg, format, stdout, stderr)
	}
	if err != nil {
		fmt.Fprintln(stderr, red(err.Error()))
		return 1
	}
	return 0
}

func isCommand(name string) bool {
	for _, c := range commands {
		if c == name {
			return true
		}
	}
	return false
}

type options struct {
	configPath string
	envPath    string
	root       string
	format     string
	addr       string
	logLevel   string
	sequence   bool
}

func newFlags(cmd string, stderr io.Writer) (*options, *flag.FlagSet) {
	o := &options{}
	fs := flag.NewFlagSet(appName+" "+cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "YAML config file")
	fs.StringVar(&o.envPath, "env", ".env", ".env file with PROCVIEW_* overrides")
	fs.StringVar(&o.root, "root", "", "procfs root directory")
	fs.StringVar(&o.format, "format", "json", "output format: json or yaml")
	fs.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error")
	if cmd == "serve" {
		fs.StringVar(&o.addr, "addr", "", "dashboard listen address")
	}
	if cmd == "decode" {
		fs.BoolVar(&o.sequence, "sequence", false, "decode blank-line separated records")
	}
	return o, fs
}

// config layers defaults, the config file, .env, the environment and flags,
// in that order.
func (o *options) config() (procview.Config, error) {
	cfg := procview.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = procview.LoadConfig(o.configPath); err != nil {
			return cfg, err
		}
	}
	if o.envPath != "" {
		if err := cfg.ApplyDotEnv(o.envPath); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if o.root != "" {
		cfg.Root = o.root
	}
	if o.addr != "" {
		cfg.Addr = o.addr
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, cfg.Validate()
}

func cmdDecode(path string, sequence bool, format outputFormat, stdin io.Reader, stdout io.Writer) error {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return err
	}

	shape := decode.ShapeMap
	if sequence {
		shape = decode.ShapeSequence
	}
	records, err := decode.Records(string(data), shape)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if shape == decode.ShapeMap {
		return write(stdout, format, records[0])
	}
	return write(stdout, format, records)
}

func cmdServe(ctx context.Context, cfg procview.Config, stderr io.Writer) error {
	m, err := procview.NewMonitor(cfg, cfg.NewLogger(stderr))
	if err != nil {
		return err
	}
	return m.Run(ctx)
}

func red(s string) string { return "\x1b[31m" + s + "\x1b[0m" }
