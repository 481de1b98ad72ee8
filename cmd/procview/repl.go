package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/chosenoffset/procview/pkg/procview"
	"github.com/chosenoffset/procview/pkg/procview/probe"
)

const (
	historyFile = ".procview_history"
	prompt      = "procview> "
)

var replCommands = []string{"memory", "cpu", "ps", "net", "misc", "all", "decode", "format", "root", "help", "quit"}

const replHelp = `Commands:
  memory | cpu | net | misc | all   print a probe
  ps [N]                            processes, top N by resident set size
  decode FILE                       decode a key: value file
  format json|yaml                  switch output format
  root [DIR]                        show or change the procfs root
  help                              this text
  quit                              exit (also Ctrl+D)
`

type repl struct {
	ctx    context.Context
	cfg    procview.Config
	format outputFormat
	fs     *probe.FS
	out    io.Writer
	errOut io.Writer
}

func newREPL(ctx context.Context, cfg procview.Config, format outputFormat, out, errOut io.Writer) *repl {
	return &repl{
		ctx:    ctx,
		cfg:    cfg,
		format: format,
		fs:     probeFS(cfg, errOut),
		out:    out,
		errOut: errOut,
	}
}

// exec runs one input line and reports whether the session should end.
func (r *repl) exec(line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.TrimPrefix(fields[0], ":"), fields[1:]

	var err error
	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprint(r.out, replHelp)
	case "memory", "cpu", "net", "misc", "all":
		var v any
		if v, err = runProbe(r.ctx, r.fs, cmd); err == nil {
			err = write(r.out, r.format, v)
		}
	case "ps":
		err = r.ps(args)
	case "decode":
		if len(args) != 1 {
			err = errors.New("usage: decode FILE")
			break
		}
		err = cmdDecode(args[0], false, r.format, os.Stdin, r.out)
	case "format":
		if len(args) != 1 {
			fmt.Fprintln(r.out, r.format)
			break
		}
		var f outputFormat
		if f, err = parseFormat(args[0]); err == nil {
			r.format = f
		}
	case "root":
		if len(args) == 0 {
			fmt.Fprintln(r.out, r.cfg.Root)
			break
		}
		r.cfg.Root = args[0]
		r.fs = probeFS(r.cfg, r.errOut)
	default:
		msg := fmt.Sprintf("unknown command %q", cmd)
		if s := suggest(cmd, replCommands); s != "" {
			msg += fmt.Sprintf(", did you mean %q?", s)
		}
		err = errors.New(msg)
	}

	if err != nil {
		fmt.Fprintln(r.errOut, red(err.Error()))
	}
	return false
}

func (r *repl) ps(args []string) error {
	procs, err := r.fs.Processes(r.ctx)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return write(r.out, r.format, procs)
	}

	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return fmt.Errorf("ps: invalid count %q", args[0])
	}
	sort.SliceStable(procs, func(i, j int) bool { return procs[i].RSS > procs[j].RSS })
	if n < len(procs) {
		procs = procs[:n]
	}
	return write(r.out, r.format, procs)
}

func (r *repl) complete(line string) []string {
	var out []string
	for _, c := range replCommands {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}
	return out
}

func cmdRepl(ctx context.Context, cfg procview.Config, format outputFormat, stdout, stderr io.Writer) error {
	r := newREPL(ctx, cfg, format, stdout, stderr)
	fmt.Fprintf(stdout, "%s REPL on %s\nCtrl+C cancels input, Ctrl+D exits. Type help for commands.\n", appName, cfg.Root)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(r.complete)

	if f, err := os.Open(histPath); err == nil {
		ln.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			ln.WriteHistory(f)
			f.Close()
		}
	}()

	for {
		line, err := ln.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			// io.EOF on Ctrl+D
			fmt.Fprintln(stdout)
			return nil
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		ln.AppendHistory(line)
		if r.exec(line) {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
