// Command jsrun evaluates script files in one execution context and prints
// the completion value of the last file as JSON.
//
// Usage:
//
//	jsrun [flags] file.js [more.js ...]
//	jsrun -e 'var x = 1 + 1; x'
//	jsrun -options bridge.toml -stats -dispatch main app.js
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/scriptbridge/internal/bridge"
	"github.com/GriffinCanCode/scriptbridge/internal/engine"
	"github.com/GriffinCanCode/scriptbridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/scriptbridge/internal/logging"
	"github.com/GriffinCanCode/scriptbridge/internal/marshal"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		var evalErr *bridge.EvalError
		if !errors.As(err, &evalErr) {
			// Script failures were already echoed by the context.
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

type stat struct {
	Count   int64 `json:"count"`
	TotalUS int64 `json:"total_us"`
	MeanUS  int64 `json:"mean_us"`
}

type report struct {
	Result     any                 `json:"result"`
	Dispatch   any                 `json:"dispatch,omitempty"`
	Values     map[string]any      `json:"values,omitempty"`
	Statistics map[string]stat     `json:"statistics,omitempty"`
	Messages   map[string][]string `json:"messages,omitempty"`
}

type assignment struct {
	path  string
	value any
}

type assignments []assignment

func (a *assignments) String() string {
	parts := make([]string, len(*a))
	for i, as := range *a {
		parts[i] = as.path
	}
	return strings.Join(parts, ",")
}

// Set parses path=value. The value is decoded as JSON and kept as a plain
// string when it is not valid JSON.
func (a *assignments) Set(raw string) error {
	path, value, ok := strings.Cut(raw, "=")
	if !ok || path == "" {
		return fmt.Errorf("expected path=value, got %q", raw)
	}
	var v any
	if err := sonic.UnmarshalString(value, &v); err != nil {
		v = value
	}
	*a = append(*a, assignment{path: path, value: v})
	return nil
}

type pathList []string

func (l *pathList) String() string { return strings.Join(*l, ",") }

func (l *pathList) Set(value string) error {
	*l = append(*l, value)
	return nil
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("jsrun", flag.ContinueOnError)
	fs.SetOutput(stderr)
	optionsFile := fs.String("options", "", "option file (.yaml, .toml, .json)")
	inline := fs.String("e", "", "evaluate this code after the files")
	dispatch := fs.String("dispatch", "", "global function to dispatch after evaluation")
	stats := fs.Bool("stats", false, "gather and print operation statistics")
	messages := fs.Bool("messages", false, "capture console output into the report instead of printing it")
	timeout := fs.Duration("timeout", 0, "per-operation timeout (floor 500ms)")
	memory := fs.Int64("memory", 0, "memory limit in bytes (floor 128KiB)")
	verbose := fs.Bool("v", false, "debug logging on stderr")
	var sets assignments
	fs.Var(&sets, "set", "assign a global before evaluation, path=json (repeatable)")
	var gets pathList
	fs.Var(&gets, "get", "include the value at path in the report (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	files := fs.Args()
	if len(files) == 0 && *inline == "" {
		fs.Usage()
		return errors.New("jsrun: no script given")
	}

	options := map[string]any{}
	if *optionsFile != "" {
		fromFile, err := config.LoadOptionsFile(*optionsFile)
		if err != nil {
			return err
		}
		options = fromFile
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "stats":
			options[bridge.OptGatherStats] = *stats
		case "messages":
			options[bridge.OptSaveMessages] = *messages
		case "timeout":
			options[bridge.OptMaxTimeoutUS] = timeout.Microseconds()
		case "memory":
			options[bridge.OptMaxMemoryBytes] = *memory
		}
	})

	logger := logging.NewNop()
	if *verbose {
		logger = logging.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()

	eng := engine.Default()
	eng.SetLogger(logger.Component("engine").Logger)

	c, err := bridge.NewFromMap(options,
		bridge.WithEngine(eng),
		bridge.WithLogger(logger.Component("bridge").Logger),
		bridge.WithOutput(stdout, stderr),
	)
	if err != nil {
		return err
	}
	defer func() { _ = c.Destroy() }()

	for _, as := range sets {
		if err := c.Set(as.path, as.value); err != nil {
			return fmt.Errorf("set %s: %w", as.path, err)
		}
	}

	ctx := context.Background()
	var out report
	for _, file := range files {
		code, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read script: %w", err)
		}
		if out.Result, err = c.Eval(ctx, string(code), file); err != nil {
			return err
		}
	}
	if *inline != "" {
		if out.Result, err = c.Eval(ctx, *inline, ""); err != nil {
			return err
		}
	}
	if *dispatch != "" {
		if out.Dispatch, err = c.DispatchFunction(ctx, *dispatch); err != nil {
			return fmt.Errorf("dispatch %s: %w", *dispatch, err)
		}
	}

	if len(gets) > 0 {
		out.Values = make(map[string]any, len(gets))
		for _, p := range gets {
			v, err := c.Get(p)
			if err != nil {
				return fmt.Errorf("get %s: %w", p, err)
			}
			out.Values[p] = marshal.Portable(v)
		}
	}
	if c.Config().GatherStats {
		out.Statistics = collectStats(c.Statistics())
	}
	if c.Config().SaveMessages {
		out.Messages = c.Messages().Snapshot()
	}
	out.Result = marshal.Portable(out.Result)
	out.Dispatch = marshal.Portable(out.Dispatch)

	data, err := sonic.ConfigStd.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	logger.ForContext(c.ID()).Debug("run finished", zap.Int("files", len(files)))
	_, err = fmt.Fprintln(stdout, string(data))
	return err
}

func collectStats(s *bridge.Statistics) map[string]stat {
	snap := s.Snapshot()
	out := make(map[string]stat, len(snap))
	for op, st := range snap {
		out[op] = stat{
			Count:   st.Count,
			TotalUS: st.Total.Microseconds(),
			MeanUS:  st.Mean().Microseconds(),
		}
	}
	return out
}

