package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"ctypes"

	"github.com/fatih/color"
	"github.com/itchyny/gojq"
	"github.com/peterh/liner"
	"github.com/urfave/cli"
	"gopkg.in/yaml.v3"
)

const historyFile = ".ctypes_history"

var (
	red    = color.New(color.FgRed).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

var (
	configPath string
	debugFlag  bool
	jsonFlag   bool
	noColor    bool
)

// session holds what every command needs: the loaded config, a runtime and
// the libraries opened so far.
type session struct {
	cfg  ctypes.Config
	rt   *ctypes.Runtime
	libs map[string]*ctypes.Library
}

func newSession() (*session, error) {
	cfg, err := ctypes.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if debugFlag {
		cfg.Debug = true
	}
	if jsonFlag {
		cfg.LogJSON = true
	}
	lg, err := cfg.Logger(os.Stderr)
	if err != nil {
		return nil, err
	}
	return &session{
		cfg:  cfg,
		rt:   ctypes.New(nil, ctypes.WithLogger(lg)),
		libs: map[string]*ctypes.Library{},
	}, nil
}

func (s *session) close() {
	_ = s.rt.Close()
	for _, l := range s.libs {
		_ = l.Close()
	}
}

func (s *session) library(name string) (*ctypes.Library, error) {
	if l, ok := s.libs[name]; ok {
		return l, nil
	}
	l, err := s.cfg.ResolveLibrary(name)
	if err != nil {
		return nil, err
	}
	s.libs[name] = l
	return l, nil
}

// call resolves symbol in lib and invokes it with args parsed for sig.
func (s *session) call(lib, symbol, sig string, args []string, asString bool) (string, error) {
	parsed, err := ctypes.ParseSignature(sig)
	if err != nil {
		return "", err
	}
	if len(args) != parsed.NumParams() {
		return "", &ctypes.ArityError{Expected: parsed.NumParams(), Actual: len(args)}
	}
	vals := make([]ctypes.Value, len(args))
	for i, a := range args {
		v, err := parseArg(a, parsed.Params[i])
		if err != nil {
			return "", fmt.Errorf("argument %d: %w", i, err)
		}
		vals[i] = v
	}
	l, err := s.library(lib)
	if err != nil {
		return "", err
	}
	fn, err := l.Symbol(symbol)
	if err != nil {
		return "", err
	}
	res, err := s.rt.Invoke(fn, parsed, vals)
	if err != nil {
		return "", err
	}
	return formatResult(res, asString), nil
}

// parseArg turns command line text into a host value suited to t.
func parseArg(a string, t *ctypes.TypeDescriptor) (ctypes.Value, error) {
	switch t.Class {
	case ctypes.ClassInteger:
		if t.Signed {
			return strconv.ParseInt(a, 0, t.Bits())
		}
		return strconv.ParseUint(a, 0, t.Bits())
	case ctypes.ClassFloat:
		return strconv.ParseFloat(a, 64)
	case ctypes.ClassPointer:
		switch {
		case a == "null" || a == "NULL":
			return ctypes.Pointer(0), nil
		case strings.HasPrefix(a, "0x"):
			u, err := strconv.ParseUint(a[2:], 16, 64)
			if err != nil {
				return nil, err
			}
			return ctypes.Pointer(u), nil
		}
		return a, nil
	}
	return nil, fmt.Errorf("no value for %s", t)
}

func formatResult(v ctypes.Value, asString bool) string {
	switch r := v.(type) {
	case nil:
		return "(void)"
	case ctypes.Pointer:
		if asString && !r.IsNull() {
			return strconv.Quote(ctypes.GoString(r))
		}
		return r.String()
	}
	return fmt.Sprint(v)
}

// typeRows is the type table as plain maps, ready for YAML or jq.
func typeRows() []any {
	var rows []any
	for _, t := range ctypes.TypeTable() {
		rows = append(rows, map[string]any{
			"code":   string(t.Code),
			"name":   t.Name,
			"size":   int(t.Size),
			"align":  int(t.Align),
			"signed": t.Signed,
			"class":  t.Class.String(),
		})
	}
	return rows
}

func writeTypes(w io.Writer, query string, asYAML bool) error {
	rows := typeRows()
	var out []any
	if query == "" {
		out = rows
	} else {
		q, err := gojq.Parse(query)
		if err != nil {
			return fmt.Errorf("invalid query: %w", err)
		}
		iter := q.Run(rows)
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := v.(error); isErr {
				return err
			}
			out = append(out, v)
		}
	}
	if asYAML {
		b, err := yaml.Marshal(out)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	}
	if query != "" {
		for _, v := range out {
			fmt.Fprintln(w, v)
		}
		return nil
	}
	fmt.Fprintf(w, "%-4s %-16s %5s %5s  %s\n", "code", "name", "size", "align", "class")
	for _, t := range ctypes.TypeTable() {
		fmt.Fprintf(w, "%-4c %-16s %5d %5d  %s\n", t.Code, t.Name, t.Size, t.Align, t.Class)
	}
	return nil
}

func validate(w io.Writer, sigs []string) error {
	failed := 0
	for _, s := range sigs {
		n, err := ctypes.ValidateSignature(s)
		if err != nil {
			failed++
			fmt.Fprintf(w, "%s %s: %s\n", red("bad"), s, err)
			continue
		}
		fmt.Fprintf(w, "%s %s: %d parameter(s)\n", green("ok"), s, n)
	}
	if failed > 0 {
		return cli.NewExitError("", 1)
	}
	return nil
}

func shell(s *session) error {
	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	fmt.Println(faint("commands: call LIB SYMBOL SIG ARGS... | validate SIG... | types [JQ] | :quit"))
	for {
		line, err := ln.Prompt("ctypes> ")
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Println()
			return nil
		}
		if err != nil {
			return err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		ln.AppendHistory(line)

		switch fields[0] {
		case ":quit", ":q", "exit":
			return nil
		case "types":
			err = writeTypes(os.Stdout, strings.Join(fields[1:], " "), false)
		case "validate":
			err = validate(os.Stdout, fields[1:])
		case "call":
			if len(fields) < 4 {
				err = errors.New("usage: call LIB SYMBOL SIG ARGS...")
				break
			}
			var out string
			out, err = s.call(fields[1], fields[2], fields[3], fields[4:], false)
			if err == nil {
				fmt.Println(yellow(out))
			}
		default:
			err = fmt.Errorf("unknown command %q", fields[0])
		}
		var exit *cli.ExitError
		if err != nil && !errors.As(err, &exit) {
			fmt.Fprintln(os.Stderr, red(err.Error()))
		}
	}
}

func main() {
	app := cli.NewApp()
	app.Name = "ctypes"
	app.Usage = "call native functions from signature strings"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "config",
			Usage:       "YAML config file",
			Destination: &configPath,
		},
		cli.BoolFlag{
			Name:        "debug",
			Usage:       "log every native call",
			Destination: &debugFlag,
		},
		cli.BoolFlag{
			Name:        "json",
			Usage:       "log as JSON lines",
			Destination: &jsonFlag,
		},
		cli.BoolFlag{
			Name:        "no-color",
			Usage:       "disable coloured output",
			Destination: &noColor,
		},
	}
	app.Before = func(c *cli.Context) error {
		if noColor {
			color.NoColor = true
		}
		return nil
	}

	app.Commands = []cli.Command{
		{
			Name:  "types",
			Usage: "list the primitive type table",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "query, q", Usage: "jq expression applied to the table"},
				cli.BoolFlag{Name: "yaml", Usage: "print as YAML"},
			},
			Action: func(c *cli.Context) error {
				return writeTypes(os.Stdout, c.String("query"), c.Bool("yaml"))
			},
		},
		{
			Name:      "validate",
			Aliases:   []string{"v"},
			Usage:     "check signature strings",
			ArgsUsage: "SIG...",
			Action: func(c *cli.Context) error {
				return validate(os.Stdout, c.Args())
			},
		},
		{
			Name:      "call",
			Aliases:   []string{"c"},
			Usage:     "call a native function",
			ArgsUsage: "LIB SYMBOL SIG [ARGS...]",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "string, s", Usage: "print a pointer result as a C string"},
			},
			Action: func(c *cli.Context) error {
				args := c.Args()
				if len(args) < 3 {
					return cli.NewExitError("call needs LIB SYMBOL SIG", 2)
				}
				s, err := newSession()
				if err != nil {
					return cli.NewExitError(red(err.Error()), 1)
				}
				defer s.close()
				out, err := s.call(args[0], args[1], args[2], args[3:], c.Bool("string"))
				if err != nil {
					return cli.NewExitError(red(err.Error()), 1)
				}
				fmt.Println(out)
				return nil
			},
		},
		{
			Name:  "shell",
			Usage: "interactive prompt",
			Action: func(c *cli.Context) error {
				s, err := newSession()
				if err != nil {
					return cli.NewExitError(red(err.Error()), 1)
				}
				defer s.close()
				return shell(s)
			},
		},
		{
			Name:  "config",
			Usage: "print the effective configuration",
			Action: func(c *cli.Context) error {
				cfg, err := ctypes.LoadConfig(configPath)
				if err != nil {
					return cli.NewExitError(red(err.Error()), 1)
				}
				b, err := cfg.Marshal()
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(b)
				return err
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
