package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/opencontainers/go-digest"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/flaneur2020/chunkcrypt/chunkcrypt"
	"github.com/flaneur2020/chunkcrypt/chunkcrypt/config"
	"github.com/flaneur2020/chunkcrypt/chunkcrypt/logger"
	"github.com/flaneur2020/chunkcrypt/chunkcrypt/storage"
	"github.com/flaneur2020/chunkcrypt/chunkcrypt/transform"
)

const (
	defaultFile     = "stories.csv"
	wholeSuffix     = ".encrypted"
	chunkedSuffix   = ".encrypted.chunked"
	flagConfig      = "config"
	flagChunkSize   = "chunk-size"
	flagConcurrency = "concurrency"
	flagTransform   = "transform"
	flagDelay       = "delay-divisor"
	flagLogLevel    = "log-level"
)

var (
	configPath   string
	chunkSize    string
	concurrency  int
	codecName    string
	delayDivisor int
	logLevel     string
	filePath     string
	noProgress   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chunkcrypt",
		Short: "Compare whole-file and parallel chunked processing of large files",
	}

	registerFlags(rootCmd.PersistentFlags())

	encryptCmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a file whole and chunked, reporting both timings",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			runEncryptWhole(cmd, args)
			fmt.Println()
			runEncryptChunked(cmd, args)
		},
	}
	encryptWholeCmd := &cobra.Command{
		Use:   "encrypt-whole",
		Short: "Encrypt a file in one call and write <PATH>.encrypted",
		Args:  cobra.NoArgs,
		Run:   runEncryptWhole,
	}
	encryptChunkedCmd := &cobra.Command{
		Use:   "encrypt-chunked",
		Short: "Encrypt a file chunk by chunk in parallel and write <PATH>.encrypted.chunked/",
		Args:  cobra.NoArgs,
		Run:   runEncryptChunked,
	}
	decryptCmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt the whole and chunked encrypted forms of a file, reporting both timings",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			runDecryptWhole(cmd, args)
			fmt.Println()
			runDecryptChunked(cmd, args)
		},
	}
	decryptWholeCmd := &cobra.Command{
		Use:   "decrypt-whole",
		Short: "Read and decrypt <PATH>.encrypted in one call",
		Args:  cobra.NoArgs,
		Run:   runDecryptWhole,
	}
	decryptChunkedCmd := &cobra.Command{
		Use:   "decrypt-chunked",
		Short: "Read and decrypt the chunks of <PATH>.encrypted.chunked/ in parallel",
		Args:  cobra.NoArgs,
		Run:   runDecryptChunked,
	}
	statCmd := &cobra.Command{
		Use:   "stat [CHUNK_SET_DIR]",
		Short: "Show the chunk count and chunk sizes of a chunk set (default <PATH>.encrypted.chunked)",
		Args:  cobra.MaximumNArgs(1),
		Run:   runStat,
	}

	rootCmd.AddCommand(encryptCmd, encryptWholeCmd, encryptChunkedCmd,
		decryptCmd, decryptWholeCmd, decryptChunkedCmd, statCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// registerFlags binds the flags shared by every command. Defaults mirror
// config.Default; only flags set explicitly override the config file.
func registerFlags(flags *pflag.FlagSet) {
	defaults := config.Default()
	flags.StringVar(&configPath, flagConfig, "", "YAML config file")
	flags.StringVar(&chunkSize, flagChunkSize, defaults.ChunkSize, "Maximum chunk size, e.g. 10MiB")
	flags.IntVar(&concurrency, flagConcurrency, defaults.Concurrency, "Chunk tasks in flight")
	flags.StringVar(&codecName, flagTransform, defaults.Transform, fmt.Sprintf("Chunk transform, one of %v", transform.Names()))
	flags.IntVar(&delayDivisor, flagDelay, defaults.DelayDivisor, "Dummy transform sleeps len/N ms per call (0 disables)")
	flags.StringVar(&logLevel, flagLogLevel, defaults.LogLevel, "Log level: silent, error, warn, info, debug")
	flags.StringVarP(&filePath, "path", "p", defaultFile, "Plain file to encrypt or whose encrypted forms to decrypt")
	flags.BoolVar(&noProgress, "no-progress", false, "Disable progress bar (progress is enabled by default)")
}

// loadConfig merges the config file with any flags set on the command line.
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg, err := config.Load(configPath)
	exitOnError("loading config", err)

	changed := cmd.Flags().Changed
	if changed(flagChunkSize) {
		cfg.ChunkSize = chunkSize
	}
	if changed(flagConcurrency) {
		cfg.Concurrency = concurrency
	}
	if changed(flagTransform) {
		cfg.Transform = codecName
	}
	if changed(flagDelay) {
		cfg.DelayDivisor = delayDivisor
	}
	if changed(flagLogLevel) {
		cfg.LogLevel = logLevel
	}
	exitOnError("validating config", cfg.Validate())

	level, _ := logger.ParseLogLevel(cfg.LogLevel)
	logger.SetLogLevel(level)
	return cfg
}

func loadCodec(cfg *config.Config) *transform.Codec {
	codec, err := cfg.Codec()
	exitOnError("loading transform", err)
	return codec
}

func newChunkedService(cfg *config.Config, description string) *chunkcrypt.ChunkedFileService {
	opts, err := cfg.EngineOptions()
	exitOnError("building engine options", err)
	if !noProgress {
		opts.Progress = newProgressCallback(description)
	}

	svc, err := chunkcrypt.NewChunkedFileService(storage.NewFSStorage(), opts)
	exitOnError("creating chunked service", err)
	return svc
}

// newProgressCallback creates the bar on the first call, once the chunk
// total is known.
func newProgressCallback(description string) chunkcrypt.ProgressCallback {
	var bar *progressbar.ProgressBar
	return func(done, total int64) {
		if bar == nil {
			bar = progressbar.Default(total, description)
		}
		bar.Set64(done)
	}
}

func runEncryptWhole(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	codec := loadCodec(cfg)
	target := filePath + wholeSuffix

	content, elapsed, err := encryptWhole(context.Background(), codec, filePath, target)
	exitOnError("encrypting "+filePath, err)
	report("Encrypted whole file", target, content, elapsed)
}

func runEncryptChunked(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	codec := loadCodec(cfg)
	target := filePath + chunkedSuffix
	svc := newChunkedService(cfg, "Encrypting chunks")

	content, elapsed, err := encryptChunked(context.Background(), svc, codec, filePath, target)
	finishProgress()
	exitOnError("encrypting "+filePath, err)
	report("Encrypted chunked file", target, content, elapsed)
}

func runDecryptWhole(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	codec := loadCodec(cfg)
	source := filePath + wholeSuffix

	content, elapsed, err := decryptWhole(context.Background(), codec, source)
	exitOnError("decrypting "+source, err)
	report("Decrypted whole file", source, content, elapsed)
}

func runDecryptChunked(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	codec := loadCodec(cfg)
	source := filePath + chunkedSuffix
	svc := newChunkedService(cfg, "Decrypting chunks")

	content, elapsed, err := decryptChunked(context.Background(), svc, codec, source)
	finishProgress()
	exitOnError("decrypting "+source, err)
	report("Decrypted chunked file", source, content, elapsed)
}

func runStat(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	source := filePath + chunkedSuffix
	if len(args) > 0 {
		source = args[0]
	}

	opts, err := cfg.EngineOptions()
	exitOnError("building engine options", err)
	svc, err := chunkcrypt.NewChunkedFileService(storage.NewFSStorage(), opts)
	exitOnError("creating chunked service", err)

	exitOnError("reading chunk set "+source, printChunkSet(context.Background(), os.Stdout, svc, source))
}

func readPlainFile(ctx context.Context, path string) ([]byte, error) {
	logger.Info("Getting file contents")
	content, err := chunkcrypt.NewWholeFileService(storage.NewFSStorage()).Read(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return content, nil
}

// encryptWhole encrypts the file at path in one call and writes it to target.
// It returns the plain content and the time spent encrypting and writing.
func encryptWhole(ctx context.Context, codec *transform.Codec, path, target string) ([]byte, time.Duration, error) {
	content, err := readPlainFile(ctx, path)
	if err != nil {
		return nil, 0, err
	}

	start := time.Now()
	logger.Info("Encrypting file")
	if err := chunkcrypt.NewWholeFileService(storage.NewFSStorage()).WriteTransform(ctx, target, content, codec.Encode); err != nil {
		return nil, 0, err
	}
	elapsed := time.Since(start)

	logger.Info("Encrypting and writing a whole file of %d bytes took %d ms", len(content), elapsed.Milliseconds())
	return content, elapsed, nil
}

// encryptChunked encrypts the file at path chunk by chunk into the chunk set
// at target.
func encryptChunked(ctx context.Context, svc *chunkcrypt.ChunkedFileService, codec *transform.Codec, path, target string) ([]byte, time.Duration, error) {
	content, err := readPlainFile(ctx, path)
	if err != nil {
		return nil, 0, err
	}

	start := time.Now()
	logger.Info("Encrypting & writing file")
	if err := svc.WriteTransform(ctx, target, content, codec.Encode); err != nil {
		return nil, 0, err
	}
	elapsed := time.Since(start)

	logger.Info("Encrypting and writing in parallel all chunks of a file of %d bytes took %d ms", len(content), elapsed.Milliseconds())
	return content, elapsed, nil
}

func decryptWhole(ctx context.Context, codec *transform.Codec, source string) ([]byte, time.Duration, error) {
	start := time.Now()
	logger.Info("Getting file contents and decrypting them")
	content, err := chunkcrypt.NewWholeFileService(storage.NewFSStorage()).ReadTransform(ctx, source, codec.Decode)
	if err != nil {
		return nil, 0, err
	}
	elapsed := time.Since(start)

	logger.Info("Reading and decrypting a whole file of %d bytes took %d ms", len(content), elapsed.Milliseconds())
	return content, elapsed, nil
}

func decryptChunked(ctx context.Context, svc *chunkcrypt.ChunkedFileService, codec *transform.Codec, source string) ([]byte, time.Duration, error) {
	start := time.Now()
	logger.Info("Getting file chunks and decrypting them")
	content, err := svc.ReadTransform(ctx, source, codec.Decode)
	if err != nil {
		return nil, 0, err
	}
	elapsed := time.Since(start)

	logger.Info("Reading and decrypting in parallel a file of %d bytes took %d ms", len(content), elapsed.Milliseconds())
	return content, elapsed, nil
}

// printChunkSet writes the chunk count and the stored size of every chunk.
func printChunkSet(ctx context.Context, w io.Writer, svc *chunkcrypt.ChunkedFileService, source string) error {
	info, err := svc.Stat(ctx, source)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Chunk set %s: %d chunks, %s stored\n", info.Path, info.ChunkCount, humanize.IBytes(uint64(info.TotalSize)))
	for i, size := range info.ChunkSizes {
		fmt.Fprintf(w, "%d: %s (%s)\n", i, svc.Layout().ChunkPath(info.Path, i), humanize.IBytes(uint64(size)))
	}
	return nil
}

// report prints the result line. The digest is of the plain content, so the
// whole and chunked runs of the same file print the same value.
func report(action, path string, content []byte, elapsed time.Duration) {
	fmt.Printf("%s %s: %s in %v (%s)\n",
		action, path, humanize.IBytes(uint64(len(content))), elapsed.Round(time.Millisecond), digest.FromBytes(content))
}

func finishProgress() {
	if !noProgress {
		fmt.Fprintln(os.Stderr)
	}
}

func exitOnError(action string, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", action, err)
	os.Exit(1)
}
