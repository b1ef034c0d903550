// Command ioringd is a small demonstration CLI exercising the runtime
// end to end: it opens a file, submits a handful of async reads and
// writes through it, and prints the resulting metrics snapshot.
// Structured the way marmos91-dittofs's cmd/dittofs/commands package
// structures its cobra root command, scaled down to this module's
// single subcommand.
package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ioring-go/ioring"
	"github.com/ioring-go/ioring/internal/bufpool"
	"github.com/ioring-go/ioring/internal/completionring"
	"github.com/ioring-go/ioring/internal/logging"
	"github.com/ioring-go/ioring/internal/opcore"
)

var (
	configFile string
	verbose    bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ioringd",
		Short: "Demonstrates the ioring asynchronous I/O runtime against a real file",
	}
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	cmd.AddCommand(demoCmd())
	return cmd
}

func demoCmd() *cobra.Command {
	var path string
	var writeThenRead bool

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Writes then reads a block from the given file asynchronously",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(path, writeThenRead)
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "path to a regular file (created if missing)")
	cmd.Flags().BoolVar(&writeThenRead, "write-then-read", true, "write a payload before reading it back")
	cmd.MarkFlagRequired("file")
	return cmd
}

func runDemo(path string, writeThenRead bool) error {
	cfg, err := ioring.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logLevel := logging.LevelInfo
	if cfg.Logging.Level == "debug" {
		logLevel = logging.LevelDebug
	}
	logger := logging.NewLogger(&logging.Config{Level: logLevel, Development: true})
	logging.SetDefault(logger)

	metrics := ioring.NewMetrics()
	observer := ioring.NewMetricsObserver(metrics)
	pool := opcore.NewPool(logger, observer)
	defer pool.Close()

	ring, err := completionring.NewRing(completionring.Config{Entries: cfg.RingEntries})
	if err != nil {
		return fmt.Errorf("create completion ring: %w", err)
	}
	defer ring.Close()

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	file := ioring.NewFile(pool, ring, int32(f.Fd()))

	payload := []byte("hello from ioringd\n")
	if writeThenRead {
		writeFuture := file.WriteAt(payload, 0)
		if err := drainUntilReady(file); err != nil {
			return err
		}
		result := writeFuture.Wait()
		if !result.Ok() {
			return fmt.Errorf("write failed: %w", result.Err)
		}
		logger.Infof("wrote %d bytes", len(payload))
	}

	readBuf := bufpool.Get(len(payload))
	defer bufpool.Put(readBuf)

	readFuture := file.ReadAt(readBuf, 0)
	if err := drainUntilReady(file); err != nil {
		return err
	}
	result := readFuture.Wait()
	if !result.Ok() {
		return fmt.Errorf("read failed: %w", result.Err)
	}

	fmt.Printf("read back: %q\n", string(result.Buffer))

	snap := metrics.Snapshot()
	fmt.Printf("allocated=%d completed_sync=%d completed_async=%d rejected=%d bytes=%d\n",
		snap.Allocated, snap.CompletedSync, snap.CompletedAsync, snap.Rejected, snap.BytesTransferred)
	return nil
}

// drainUntilReady calls Drain once. Submitted operations against a
// regular file typically complete by the time Drain is called; a
// production poller would loop here until its own shutdown signal.
func drainUntilReady(file *ioring.File) error {
	if err := file.Drain(true); err != nil {
		if err == syscall.EINTR {
			return nil
		}
		return err
	}
	return nil
}
