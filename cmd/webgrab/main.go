package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/webgrab/pkg/config"
	"github.com/Sriram-PR/webgrab/pkg/cookies"
	"github.com/Sriram-PR/webgrab/pkg/scraper"
	"github.com/Sriram-PR/webgrab/pkg/storage"
	"github.com/Sriram-PR/webgrab/pkg/utils"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "get":
		runGet(os.Args[2:])
	case "page":
		runPage(os.Args[2:])
	case "save":
		runSave(os.Args[2:])
	case "history":
		runHistory(os.Args[2:])
	case "attrs":
		runAttrs(os.Args[2:])
	case "cookies":
		runCookies(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "version":
		fmt.Printf("webgrab %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `webgrab - Fetch web pages and download files

Usage:
  webgrab <command> [options]

Commands:
  get         Fetch a URL and write the body to stdout or a file
  page        Fetch an HTML page and print selected text, attributes or Markdown
  save        Download files, skipping ones already on disk
  history     Show or export the download history
  attrs       Print the origin tags of downloaded files
  cookies     List the cookies stored in a jar
  validate    Validate configuration file
  version     Show version info

Run 'webgrab <command> -h' for command-specific help.`)
}

// --- Shared flags and setup ---

// commonFlags are accepted by every command that talks to the network
type commonFlags struct {
	configFile   *string
	logLevel     *string
	cookies      *string
	cookieFormat *string
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		configFile:   fs.String("config", "", "Path to YAML config file (optional)"),
		logLevel:     fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)"),
		cookies:      fs.String("cookies", "", "Cookie jar name under <cache_dir>/cookies (empty for none)"),
		cookieFormat: fs.String("cookie-format", "", "Store the cookie jar as 'lwp' or 'netscape' (default: the format it was read in)"),
	}
}

// headerFlags collects repeated -H "Name: value" flags
type headerFlags http.Header

func (h headerFlags) String() string {
	parts := make([]string, 0, len(h))
	for k, vs := range h {
		for _, v := range vs {
			parts = append(parts, k+": "+v)
		}
	}
	return strings.Join(parts, ", ")
}

func (h headerFlags) Set(value string) error {
	name, val, ok := strings.Cut(value, ":")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("header must look like 'Name: value', got %q", value)
	}
	http.Header(h).Add(strings.TrimSpace(name), strings.TrimSpace(val))
	return nil
}

// setupLogger creates a logger writing to stderr with the requested level
func setupLogger(logLevelStr string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
		log.Debugf("Setting log level to: %s", level.String())
	}

	return log
}

// loadConfig loads the config file (or the defaults when path is empty) and validates it
func loadConfig(path string) (*config.AppConfig, []string, error) {
	cfg := &config.AppConfig{}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	}
	warnings, err := cfg.Validate()
	if err != nil {
		return nil, warnings, err
	}
	return cfg, warnings, nil
}

// loadAndValidateConfig loads the config and logs warnings; exits on error
func loadAndValidateConfig(configFile string, log *logrus.Logger) *config.AppConfig {
	if configFile != "" {
		log.Debugf("Loading configuration from %s", configFile)
	}
	cfg, warnings, err := loadConfig(configFile)
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	return cfg
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
// A second signal exits immediately.
func signalContext(log *logrus.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Warnf("Received signal %v, stopping...", sig)
			cancel()
		case <-ctx.Done():
			return
		}
		sig := <-sigChan
		log.Warnf("Received second signal %v, forcing exit", sig)
		os.Exit(1)
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// openHistory opens the download history store, or returns nil when history is disabled
func openHistory(cfg *config.AppConfig, log *logrus.Logger) (storage.HistoryStore, error) {
	if !cfg.EnableHistory {
		return nil, nil
	}
	store, err := storage.NewBadgerStore(cfg.StateDir, log.WithField("component", "history"))
	if err != nil {
		return nil, err
	}
	return store, nil
}

// newSession builds a scraper and loads the named cookie jar, if any.
// A non-empty cookieFormat changes the format the jar is stored in.
func newSession(cfg *config.AppConfig, log *logrus.Logger, cookieJar, cookieFormat string, store storage.DownloadStore) (*scraper.Scraper, error) {
	var format cookies.Format
	if cookieFormat != "" {
		if cookieJar == "" {
			return nil, fmt.Errorf("%w: -cookie-format needs -cookies", utils.ErrConfigValidation)
		}
		f, err := cookies.ParseFormat(cookieFormat)
		if err != nil {
			return nil, err
		}
		format = f
	}

	var opts []scraper.Option
	if store != nil {
		opts = append(opts, scraper.WithStore(store))
	}
	s, err := scraper.New(cfg, logrus.NewEntry(log), opts...)
	if err != nil {
		return nil, err
	}
	if cookieJar != "" {
		if err := s.LoadCookies(cookieJar); err != nil {
			return nil, err
		}
		if cookieFormat != "" {
			s.Cookies().SetFormat(format)
		}
	}
	return s, nil
}

// finishSession saves cookies back when a jar was loaded
func finishSession(s *scraper.Scraper, log *logrus.Logger) {
	if s.Cookies() == nil {
		return
	}
	if err := s.StoreCookies(); err != nil {
		log.Errorf("Failed to store cookies: %v", err)
		return
	}
	log.Debugf("Stored %d cookies in %s", s.Cookies().Len(), s.Cookies().Path())
}

// --- Subcommand entry points ---

// runGet handles the get subcommand
func runGet(args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	common := addCommonFlags(fs)
	outFile := fs.String("o", "", "Write the body to this file instead of stdout")
	headers := headerFlags{}
	fs.Var(headers, "H", "Extra request header 'Name: value' (repeatable)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: webgrab get [options] URL\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}

	log := setupLogger(*common.logLevel)
	cfg := loadAndValidateConfig(*common.configFile, log)
	ctx, stop := signalContext(log)
	defer stop()

	s, err := newSession(cfg, log, *common.cookies, *common.cookieFormat, nil)
	if err != nil {
		log.Fatalf("Failed to initialize session: %v", err)
	}
	err = doGet(ctx, s, fs.Arg(0), http.Header(headers), *outFile, os.Stdout)
	finishSession(s, log)
	if err != nil {
		log.Errorf("get failed: %v", err)
		os.Exit(1)
	}
}

// runPage handles the page subcommand
func runPage(args []string) {
	fs := flag.NewFlagSet("page", flag.ExitOnError)
	common := addCommonFlags(fs)
	selector := fs.String("select", "", "CSS selector (defaults to the page title, or the whole page with -markdown)")
	attr := fs.String("attr", "", "Print this attribute of each match instead of its text (URLs are made absolute)")
	markdown := fs.Bool("markdown", false, "Render the selection as Markdown")
	headers := headerFlags{}
	fs.Var(headers, "H", "Extra request header 'Name: value' (repeatable)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: webgrab page [options] URL\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  webgrab page -select 'a.download' -attr href https://example.com/releases\n")
		fmt.Fprintf(os.Stderr, "  webgrab page -markdown -select main https://example.com/docs/\n")
	}
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}

	log := setupLogger(*common.logLevel)
	cfg := loadAndValidateConfig(*common.configFile, log)
	ctx, stop := signalContext(log)
	defer stop()

	s, err := newSession(cfg, log, *common.cookies, *common.cookieFormat, nil)
	if err != nil {
		log.Fatalf("Failed to initialize session: %v", err)
	}
	err = doPage(ctx, s, fs.Arg(0), pageOptions{
		Selector: *selector,
		Attr:     *attr,
		Markdown: *markdown,
		Headers:  http.Header(headers),
	}, os.Stdout)
	finishSession(s, log)
	if err != nil {
		log.Errorf("page failed: %v", err)
		os.Exit(1)
	}
}

// runSave handles the save subcommand
func runSave(args []string) {
	fs := flag.NewFlagSet("save", flag.ExitOnError)
	common := addCommonFlags(fs)
	outDir := fs.String("o", "", "Output directory (defaults to output_dir from config, else the current directory)")
	name := fs.String("name", "", "Local file name (single URL only)")
	referer := fs.String("referer", "", "Referer header (defaults to the URL itself)")
	clobber := fs.Bool("clobber", false, "Download even if the file already exists")
	showProgress := fs.Bool("progress", false, "Stream with a progress bar through a .part file")
	quiet := fs.Bool("quiet", false, "Do not log each saved file")
	message := fs.String("msg", "", "Message to log after each successful save instead of the default")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: webgrab save [options] URL...\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil || fs.NArg() == 0 {
		fs.Usage()
		os.Exit(1)
	}
	if *name != "" && fs.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "Error: -name can only be used with a single URL")
		os.Exit(1)
	}

	log := setupLogger(*common.logLevel)
	cfg := loadAndValidateConfig(*common.configFile, log)
	ctx, stop := signalContext(log)
	defer stop()

	store, err := openHistory(cfg, log)
	if err != nil {
		log.Fatalf("Failed to open download history: %v", err)
	}
	closeStore := func() {
		if store != nil {
			store.Close()
		}
	}

	s, err := newSession(cfg, log, *common.cookies, *common.cookieFormat, store)
	if err != nil {
		closeStore()
		log.Fatalf("Failed to initialize session: %v", err)
	}

	dir := *outDir
	if dir == "" {
		dir = s.OutputDir()
	}
	err = doSave(ctx, s, fs.Args(), scraper.SaveOptions{
		Name:      *name,
		Referer:   *referer,
		OutputDir: dir,
		Clobber:   *clobber,
		Progress:  *showProgress,
		LogSaved:  !*quiet,
		SaveMsg:   *message,
	}, os.Stdout, log)
	finishSession(s, log)
	closeStore()
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

// runHistory handles the history subcommand
func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to YAML config file (optional)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	export := fs.String("export", "", "Write the history as TSV to this file instead of printing it")
	gc := fs.Bool("gc", false, "Run database garbage collection afterwards")
	lookup := fs.String("url", "", "Show the recorded entry for this URL only")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: webgrab history [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	log := setupLogger(*logLevel)
	cfg := loadAndValidateConfig(*configFile, log)
	if !cfg.EnableHistory {
		fmt.Fprintln(os.Stderr, "Error: download history is disabled (set enable_history in the config file)")
		os.Exit(1)
	}
	ctx, stop := signalContext(log)
	defer stop()

	store, err := openHistory(cfg, log)
	if err != nil {
		log.Fatalf("Failed to open download history: %v", err)
	}
	if *lookup != "" {
		err = doLookup(store, *lookup, os.Stdout)
	} else {
		err = doHistory(ctx, store, *export, *gc, os.Stdout)
	}
	store.Close()
	if err != nil {
		log.Errorf("history failed: %v", err)
		os.Exit(1)
	}
}

// runAttrs handles the attrs subcommand
func runAttrs(args []string) {
	fs := flag.NewFlagSet("attrs", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: webgrab attrs FILE...\n")
	}
	if err := fs.Parse(args); err != nil || fs.NArg() == 0 {
		fs.Usage()
		os.Exit(1)
	}
	os.Exit(doAttrs(fs.Args(), os.Stdout, os.Stderr))
}

// runCookies handles the cookies subcommand
func runCookies(args []string) {
	fs := flag.NewFlagSet("cookies", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to YAML config file (optional)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: webgrab cookies [options] NAME\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}

	log := setupLogger(*logLevel)
	cfg := loadAndValidateConfig(*configFile, log)
	s, err := newSession(cfg, log, fs.Arg(0), "", nil)
	if err != nil {
		log.Fatalf("Failed to load cookies: %v", err)
	}
	doCookies(s.Cookies(), os.Stdout)
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: webgrab validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doValidate(*configFile, os.Stdout, os.Stderr))
}
