package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"image-optimizer-go/internal/archive"
	"image-optimizer-go/internal/codec"
	"image-optimizer-go/internal/config"
	"image-optimizer-go/internal/logger"
	"image-optimizer-go/internal/metadata"
	"image-optimizer-go/internal/optimizer"
	"image-optimizer-go/internal/stats"
	"image-optimizer-go/internal/web"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile      string
	verbose      bool
	quiet        bool
	quality      int
	format       string
	outputDir    string
	keepOriginal bool
	noRecursive  bool
	port         int
)

// rootCmd is the base command for the CLI. It optimizes a file or a
// directory tree of images.
var rootCmd = &cobra.Command{
	Use:   "image-optimizer <input>",
	Short: "Re-encode images into WebP, PNG or JPEG and report size savings",
	Long: `Image Optimizer converts raster images into a chosen target format at a
requested quality level and reports the byte savings per file.

Features:
- WebP, PNG and JPEG targets with per-format encoder tuning
- Batch conversion over files or whole directory trees
- Per-item success/failure reporting; one failure never aborts a batch
- EXIF preservation for JPEG-to-JPEG conversions
- Web server mode delivering optimized batches as ZIP archives`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOptimize(cmd, args[0])
	},
}

// serveCmd starts the HTTP server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP optimization server",
	Long: `Starts an HTTP server that accepts multipart image uploads on
POST /api/optimize and answers with a ZIP archive of the optimized outputs.
Progress events are broadcast on the /ws websocket endpoint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// inspectCmd prints the metadata of a single image.
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Print image metadata for a single file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(args[0])
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	rootCmd.Flags().IntVarP(&quality, "quality", "q", 75, "encoder quality (0-100)")
	rootCmd.Flags().StringVarP(&format, "format", "f", "", "target format: webp, png or jpg (default from config)")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default: alongside each input)")
	rootCmd.Flags().BoolVarP(&keepOriginal, "keep-original", "k", false, "keep source files after conversion")
	rootCmd.Flags().BoolVar(&noRecursive, "no-recursive", false, "do not descend into subdirectories")

	serveCmd.Flags().IntVar(&port, "port", 0, "port to listen on (default from config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(inspectCmd)
}

// initConfig loads configuration file and environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.image-optimizer")
		viper.AddConfigPath("/etc/image-optimizer")
	}

	viper.AutomaticEnv()
}

// runOptimize converts the input file or directory and prints a summary.
func runOptimize(cmd *cobra.Command, input string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !cmd.Flags().Changed("quality") {
		quality = cfg.Defaults.Quality
	}
	if quality < 0 || quality > 100 {
		return fmt.Errorf("quality must be between 0 and 100, got %d", quality)
	}

	targetFormat := cfg.DefaultFormat()
	if format != "" {
		targetFormat, err = codec.ParseFormat(format)
		if err != nil {
			return err
		}
	}

	if !cmd.Flags().Changed("keep-original") {
		keepOriginal = cfg.Defaults.KeepOriginal
	}

	inputs, err := optimizer.CollectImages([]string{input}, !noRecursive)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		fmt.Fprintf(os.Stderr, "Warning: no images found in %s\n", input)
		return nil
	}

	log := setupLogger(cfg)

	codec.Startup()
	defer codec.Shutdown()

	opt := optimizer.New(codec.New(), metadata.NewPreserver(log), log)
	batchStats := stats.NewStatistics()

	opts := optimizer.Options{
		Quality:      quality,
		Format:       targetFormat,
		OutputDir:    outputDir,
		KeepOriginal: keepOriginal,
		PreserveEXIF: cfg.Metadata.PreserveEXIF,
		Workers:      cfg.Performance.WorkerThreads,
	}

	results := opt.OptimizeBatch(context.Background(), inputs, opts)

	for _, res := range results {
		batchStats.RecordResult(res)
		if quiet {
			continue
		}
		if res.Success {
			fmt.Printf("  %s -> %s (%s -> %s, %.2f%% saved)\n",
				res.InputPath,
				res.OutputPath,
				stats.FormatBytes(res.OriginalSize),
				stats.FormatBytes(res.OptimizedSize),
				res.Reduction)
		} else {
			fmt.Printf("  %s: FAILED (%s)\n", res.InputPath, res.Error)
		}
	}
	batchStats.Finalize()

	if !quiet {
		fmt.Println("\n" + batchStats.GetSummary())
		if len(batchStats.Failures()) > 0 {
			fmt.Println("\n" + batchStats.GetErrorSummary())
		}
	}

	return nil
}

// runServe starts the web server and handles graceful shutdown.
func runServe() error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	log := setupLogger(cfg)

	codec.Startup()
	defer codec.Shutdown()

	opt := optimizer.New(codec.New(), metadata.NewPreserver(log), log)
	arch := archive.NewBuilder(log)
	server := web.NewServer(cfg, log, opt, arch)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Start(port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	fmt.Printf("Image optimizer listening on http://localhost:%d\n", port)
	fmt.Printf("Press Ctrl+C to stop the server\n\n")

	<-sigChan
	fmt.Println("\nShutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	fmt.Println("Server stopped gracefully")
	return nil
}

// runInspect prints the metadata fields of a single file.
func runInspect(filePath string) error {
	if !fileExists(filePath) {
		return fmt.Errorf("file does not exist: %s", filePath)
	}

	fields, err := metadata.Describe(filePath)
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("Metadata for %s:\n", filePath)
	for _, k := range keys {
		fmt.Printf("  %s: %v\n", k, fields[k])
	}

	return nil
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	loggerCfg := logger.LoggerConfig{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    !quiet,
	}

	if verbose {
		loggerCfg.Level = "debug"
	}
	if quiet {
		loggerCfg.Level = "error"
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

// fileExists returns true if the given path exists and is a file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
