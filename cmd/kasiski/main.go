// Command kasiski recovers the key of Vigenère ciphertext read from stdin.
//
// The key length is estimated by Kasiski examination of repeated trigrams
// and each key letter is then chosen by letter frequency correlation.
//
// Usage:
//
//	kasiski [-e | -p] [flags] < ciphertext
//
// Examples:
//
//	# English plaintext (default)
//	kasiski < message.enc
//
//	# Portuguese plaintext with accents folded
//	kasiski -p -fold < mensagem.enc
//
//	# Full report as JSON, recorded in history
//	kasiski -format json -save < message.enc
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"kasiski/internal/config"
	"kasiski/internal/freq"
	"kasiski/internal/kasiski"
	"kasiski/internal/logging"
	"kasiski/internal/report"
	"kasiski/internal/store"
)

var (
	// Version information (set at build time)
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	english    bool
	portuguese bool
	lang       string
	table      string
	configPath string
	threshold  float64
	maxPrime   int
	rounding   string
	fold       bool
	format     string
	save       bool
	verbose    bool
	version    bool
}

func newFlagSet(stderr io.Writer, o *options) *flag.FlagSet {
	fs := flag.NewFlagSet("kasiski", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.BoolVar(&o.english, "e", false, "plaintext is English (default)")
	fs.BoolVar(&o.portuguese, "p", false, "plaintext is Portuguese")
	fs.StringVar(&o.lang, "lang", "", "reference table by name: "+joinNames())
	fs.StringVar(&o.table, "table", "", "custom frequency table file (json, yaml, toml)")
	fs.StringVar(&o.configPath, "config", "", "config file (default: platform config dir)")
	fs.Float64Var(&o.threshold, "threshold", kasiski.DefaultThreshold, "vote ratio a prime must exceed")
	fs.IntVar(&o.maxPrime, "max-prime", kasiski.DefaultMaxPrime, "largest prime used to factor gaps")
	fs.StringVar(&o.rounding, "rounding", "floor", "exponent rounding: floor, nearest")
	fs.BoolVar(&o.fold, "fold", false, "fold accented letters to their base letter")
	fs.StringVar(&o.format, "format", "key", "output format: key, text, json, yaml, markdown")
	fs.BoolVar(&o.save, "save", false, "record the run in the history database")
	fs.BoolVar(&o.verbose, "v", false, "debug logging to stderr")
	fs.BoolVar(&o.version, "version", false, "print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "kasiski - recover the key of Vigenère ciphertext\n\n")
		fmt.Fprintf(stderr, "Usage: kasiski [-e | -p] [flags] < ciphertext\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nOutput Formats:\n")
		fmt.Fprintf(stderr, "  key       - the recovered key on one line (default)\n")
		fmt.Fprintf(stderr, "  text      - key, factors and vote counts\n")
		fmt.Fprintf(stderr, "  json      - full result as JSON\n")
		fmt.Fprintf(stderr, "  yaml      - full result as YAML\n")
		fmt.Fprintf(stderr, "  markdown  - report tables\n")
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  kasiski < message.enc\n")
		fmt.Fprintf(stderr, "  kasiski -p -fold < mensagem.enc\n")
		fmt.Fprintf(stderr, "  kasiski -format text -v < message.enc\n")
	}
	return fs
}

func joinNames() string {
	var buf bytes.Buffer
	for i, n := range freq.Names() {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(n)
	}
	return buf.String()
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var o options
	fs := newFlagSet(stderr, &o)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	if o.version {
		fmt.Fprintf(stdout, "kasiski %s (commit: %s, built: %s)\n", version, commit, buildTime)
		return exitOK
	}

	usageError := func(format string, a ...any) int {
		fmt.Fprintf(stderr, "kasiski: "+format+"\n\n", a...)
		fs.Usage()
		return exitUsage
	}
	if fs.NArg() > 0 {
		return usageError("unexpected argument %q; ciphertext is read from stdin", fs.Arg(0))
	}
	if o.english && o.portuguese {
		return usageError("-e and -p are mutually exclusive")
	}
	format, err := report.ParseFormat(o.format)
	if err != nil {
		return usageError("%v", err)
	}

	fatal := func(err error) int {
		fmt.Fprintf(stderr, "kasiski: %v\n", err)
		return exitFatal
	}

	path := o.configPath
	if path == "" {
		path = config.FindConfigFile()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fatal(fmt.Errorf("load config: %w", err))
	}

	// Flags given on the command line override the config file.
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	ac := &cfg.Analysis
	switch {
	case o.portuguese:
		ac.Language, ac.TablePath = freq.Portuguese.Name, ""
	case o.english:
		ac.Language, ac.TablePath = freq.English.Name, ""
	}
	if set["lang"] {
		ac.Language, ac.TablePath = o.lang, ""
	}
	if set["table"] {
		ac.TablePath = o.table
	}
	if set["threshold"] {
		ac.Threshold = o.threshold
	}
	if set["max-prime"] {
		ac.MaxPrime = o.maxPrime
	}
	if set["rounding"] {
		ac.Rounding = o.rounding
	}
	if set["fold"] {
		ac.FoldAccents = o.fold
	}
	if o.verbose {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		if set["lang"] || set["threshold"] || set["max-prime"] || set["rounding"] {
			return usageError("%v", err)
		}
		return fatal(err)
	}

	lc, err := logging.FromSettings(cfg.Logging, stderr)
	if err != nil {
		return fatal(err)
	}
	logger, err := logging.New(lc)
	if err != nil {
		return fatal(fmt.Errorf("init logging: %w", err))
	}
	defer logger.Close()

	analyzer, err := kasiski.FromConfig(*ac, logger.Logger)
	if err != nil {
		if errors.Is(err, kasiski.ErrInvalidOption) {
			return usageError("%v", err)
		}
		return fatal(err)
	}

	var captured bytes.Buffer
	input := stdin
	if o.save {
		input = io.TeeReader(stdin, &captured)
	}

	res, err := analyzer.Analyze(ctx, input)
	if err != nil {
		return fatal(err)
	}

	if err := report.NewReportGenerator(format).WithVerbose(o.verbose).Generate(res, stdout); err != nil {
		return fatal(fmt.Errorf("write report: %w", err))
	}

	if o.save {
		id, err := saveRun(cfg.History.Path, res, captured.Bytes())
		if err != nil {
			return fatal(err)
		}
		logger.Info("run recorded", "run_id", id, "path", cfg.History.Path)
	}
	return exitOK
}

func saveRun(path string, res *kasiski.Result, ciphertext []byte) (int64, error) {
	st, err := store.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open history: %w", err)
	}
	defer st.Close()

	id, err := st.InsertRun(store.NewRun(res, store.SourceStdin, "", ciphertext))
	if err != nil {
		return 0, fmt.Errorf("record run: %w", err)
	}
	return id, nil
}
