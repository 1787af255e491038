package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/himanishpuri/NoteGram/internal/audio"
	"github.com/himanishpuri/NoteGram/internal/config"
	"github.com/himanishpuri/NoteGram/pkg/logger"
	"github.com/himanishpuri/NoteGram/pkg/notegram"
)

// Global flags
var (
	configPath   string
	dbPath       string
	windowLength int
	backend      string
	imageFormat  string
	imageScale   int
	logLevel     string
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	errColor  = color.New(color.FgRed, color.Bold)
	infoColor = color.New(color.FgCyan)
)

func init() {
	// Global flags override the environment and config file when given
	flag.StringVar(&configPath, "config", getEnvOrDefault("NOTEGRAM_CONFIG", ""), "Path to a .toml or .yaml config file")
	flag.StringVar(&dbPath, "db", "", "Path to the SQLite run catalog (env: NOTEGRAM_DB_PATH)")
	flag.IntVar(&windowLength, "window", 0, "Samples per window, a power of two (env: RESOLUTION)")
	flag.StringVar(&backend, "backend", "", "FFT backend: godsp or gonum (env: FFT_BACKEND)")
	flag.StringVar(&imageFormat, "format", "", "Image format: png, bmp or tiff (env: IMAGE_FORMAT)")
	flag.IntVar(&imageScale, "scale", 0, "Integer image scale factor (env: IMAGE_SCALE)")
	flag.StringVar(&logLevel, "log-level", "", "DEBUG, INFO, WARN or FATAL (env: LOG_LEVEL)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// loadConfig merges defaults, config file, environment and global flags.
func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fail("Failed to load configuration: %v", err)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "db":
			cfg.DBPath = dbPath
		case "window":
			cfg.WindowLength = windowLength
		case "backend":
			cfg.FFTBackend = backend
		case "format":
			cfg.ImageFormat = imageFormat
		case "scale":
			cfg.ImageScale = imageScale
		case "log-level":
			cfg.LogLevel = logLevel
		}
	})

	if level, ok := logger.ParseLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	}
	return cfg
}

// createService creates a new NoteGram service from the merged configuration
func createService(cfg *config.Config, extra ...notegram.Option) notegram.Service {
	opts, err := notegram.OptionsFromConfig(cfg)
	if err != nil {
		fail("Invalid configuration: %v", err)
	}

	svc, err := notegram.NewService(append(opts, extra...)...)
	if err != nil {
		fail("Failed to create service: %v", err)
	}
	return svc
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg := loadConfig()
	command, args := flag.Arg(0), flag.Args()[1:]
	logger.GetLogger().Debugf("Executing command: %s", command)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "process":
		handleProcess(ctx, cfg, args)
	case "file":
		handleFile(ctx, cfg, args)
	case "generate":
		handleGenerate(ctx, cfg, args)
	case "watch":
		handleWatch(ctx, cfg, args)
	case "list":
		handleList(cfg)
	case "show":
		handleShow(cfg, args)
	case "delete":
		handleDelete(cfg, args)
	default:
		errColor.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// outputFlags registers the flags shared by commands that write results.
func outputFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.BoolVar(&cfg.Save, "save", cfg.Save, "Write spectrogram JSON (env: SAVE)")
	fs.BoolVar(&cfg.Draw, "draw", cfg.Draw, "Render spectrogram images (env: DRAW)")
	fs.StringVar(&cfg.JSONDir, "json-dir", cfg.JSONDir, "JSON output folder (env: OUT_FOLDER_JSON)")
	fs.StringVar(&cfg.DrawDir, "draw-dir", cfg.DrawDir, "Image output folder (env: OUT_FOLDER_DRAW)")
	fs.BoolVar(&cfg.Normalize, "normalize", cfg.Normalize, "Scale magnitudes so the peak is 255 (env: NORMALIZE)")
	fs.StringVar(&cfg.PublishURL, "publish", cfg.PublishURL, "POST each result to this URL (env: PUBLISH_URL)")
}

func handleProcess(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	outputFlags(fs, cfg)
	fs.BoolVar(&cfg.Crop, "crop", cfg.Crop, "Crop every file to the smallest file's window count (env: CROP)")
	fs.BoolVar(&cfg.ContinueOnError, "continue", cfg.ContinueOnError, "Skip failing files instead of stopping")
	fs.Parse(args)
	if fs.NArg() > 0 {
		cfg.InputDir = fs.Arg(0)
	}

	svc := createService(cfg)
	defer svc.Close()

	infoColor.Printf("Processing %s (window %d)\n", cfg.InputDir, cfg.WindowLength)
	batch, err := svc.ProcessFolder(ctx, cfg.InputDir)
	if batch != nil {
		printBatch(batch)
	}
	if err != nil {
		fail("Processing failed: %v", err)
	}
	okColor.Println("DONE")
}

func printBatch(batch *notegram.BatchResult) {
	if batch.CropBudget > 0 {
		fmt.Printf("Crop budget: %d windows\n", batch.CropBudget)
	}
	for _, res := range batch.Results {
		printResult(&res)
	}
	for _, f := range batch.Failed {
		errColor.Printf("  x %s: %v\n", filepath.Base(f.Path), f.Err)
	}
}

func printResult(res *notegram.Result) {
	okColor.Printf("  + %s", res.Source)
	fmt.Printf(": %d windows x %d notes (%d Hz, %d-bit)\n", res.Windows, res.Notes, res.Format.SampleRate, res.Format.BitDepth)
	if res.JSONPath != "" {
		fmt.Printf("      json:  %s\n", res.JSONPath)
	}
	if res.ImagePath != "" {
		fmt.Printf("      image: %s\n", res.ImagePath)
	}
	if res.RunID != "" {
		fmt.Printf("      run:   %s\n", res.RunID)
	}
}

func handleFile(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("file", flag.ExitOnError)
	outputFlags(fs, cfg)
	limit := fs.Int("limit", 0, "Keep at most this many windows (0 keeps all)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Println("Usage: notegram file [options] <file.wav>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	if st, err := os.Stat(path); err == nil {
		infoColor.Printf("Processing %s (%s)\n", path, humanize.Bytes(uint64(st.Size())))
	}

	svc := createService(cfg)
	defer svc.Close()

	res, err := svc.ProcessFile(ctx, path, *limit)
	if err != nil {
		fail("Processing failed: %v", err)
	}
	printResult(res)
}

func handleGenerate(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	outputFlags(fs, cfg)
	freq := fs.Float64("freq", 440, "Tone frequency in Hz")
	rate := fs.Int("rate", 44100, "Sample rate in Hz")
	windows := fs.Int("windows", 1, "Length of the tone in windows")
	out := fs.String("out", "", "Also write the tone to this WAV file")
	bits := fs.Int("bits", 16, "Bit depth of the written WAV file")
	fs.Parse(args)

	samples := audio.Sine(*freq, *rate, *windows*cfg.WindowLength, 1)
	if *out != "" {
		if err := audio.WriteWav(*out, samples, *rate, *bits); err != nil {
			fail("Failed to write %s: %v", *out, err)
		}
		okColor.Printf("Wrote %s\n", *out)
	}

	svc := createService(cfg)
	defer svc.Close()

	name := fmt.Sprintf("sine-%gHz.wav", *freq)
	res, err := svc.AnalyzeSamples(ctx, name, samples, *rate)
	if err != nil {
		fail("Analysis failed: %v", err)
	}
	printResult(res)
}

func handleWatch(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	outputFlags(fs, cfg)
	fs.Parse(args)
	if fs.NArg() > 0 {
		cfg.InputDir = fs.Arg(0)
	}

	svc := createService(cfg)
	defer svc.Close()

	infoColor.Printf("Watching %s, press Ctrl+C to stop\n", cfg.InputDir)
	if err := svc.Watch(ctx, cfg.InputDir); err != nil {
		fail("Watch failed: %v", err)
	}
}

func handleList(cfg *config.Config) {
	svc := createService(cfg)
	defer svc.Close()

	runs, err := svc.ListRuns()
	if err != nil {
		fail("Failed to list runs: %v", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs in catalog")
		return
	}

	fmt.Printf("Found %d run(s):\n\n", len(runs))
	for i, run := range runs {
		fmt.Printf("%d. %s (ID: %s)\n", i+1, run.Source, run.ID)
		fmt.Printf("   %d windows x %d notes, window %d, %s\n",
			run.Windows, run.Notes, run.WindowLength, humanize.Time(run.CreatedAt))
	}
}

func handleShow(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: notegram show <run_id>")
		os.Exit(1)
	}

	svc := createService(cfg)
	defer svc.Close()

	run, err := svc.GetRun(args[0])
	if err != nil {
		fail("Run not found: %v", err)
	}
	fmt.Printf("ID:          %s\n", run.ID)
	fmt.Printf("Source:      %s\n", run.Source)
	fmt.Printf("Format:      %d Hz, %d-bit\n", run.SampleRate, run.BitDepth)
	fmt.Printf("Shape:       %d windows x %d notes (window %d)\n", run.Windows, run.Notes, run.WindowLength)
	if run.CropBudget > 0 {
		fmt.Printf("Crop budget: %d\n", run.CropBudget)
	}
	if run.JSONPath != "" {
		fmt.Printf("JSON:        %s\n", run.JSONPath)
	}
	if run.ImagePath != "" {
		fmt.Printf("Image:       %s\n", run.ImagePath)
	}
	fmt.Printf("Created:     %s\n", run.CreatedAt.Format("2006-01-02 15:04:05"))
}

func handleDelete(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: notegram delete <run_id>")
		os.Exit(1)
	}

	svc := createService(cfg)
	defer svc.Close()

	if err := svc.DeleteRun(args[0]); err != nil {
		fail("Failed to delete run: %v", err)
	}
	okColor.Printf("Deleted run %s\n", args[0])
}

func fail(format string, args ...any) {
	errColor.Fprintf(os.Stderr, format+"\n", args...)
	logger.GetLogger().Debugf(format, args...)
	os.Exit(1)
}

func printUsage() {
	fmt.Println("NoteGram - note-grid spectrograms from WAV files")
	fmt.Println("\nGlobal Options:")
	flag.PrintDefaults()
	fmt.Println("\nUsage:")
	fmt.Println("  notegram [global-options] process [--crop] [--save] [--draw] [--continue] [folder]")
	fmt.Println("  notegram [global-options] file [--limit n] [--save] [--draw] <file.wav>")
	fmt.Println("  notegram [global-options] generate [--freq 440] [--windows 1] [--out tone.wav]")
	fmt.Println("  notegram [global-options] watch [--save] [--draw] [folder]")
	fmt.Println("  notegram [global-options] list")
	fmt.Println("  notegram [global-options] show <run_id>")
	fmt.Println("  notegram [global-options] delete <run_id>")
	fmt.Println("\nExamples:")
	fmt.Println("  # Crop a folder of recordings to equal length and save JSON and PNG")
	fmt.Println("  notegram process --crop --save --draw ./audio")
	fmt.Println()
	fmt.Println("  # Larger windows, gonum FFT, BMP images scaled 4x")
	fmt.Println("  notegram --window 4096 --backend gonum --format bmp --scale 4 process --draw ./audio")
}
