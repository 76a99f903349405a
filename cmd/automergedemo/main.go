// Command automergedemo exercises a document end to end: one replica seeds
// a text object and saves it, a second replica loads that save, both edit
// concurrently, and the first merges the second's changes and prints the
// merged text. It
// mirrors the teacher's cmd entrypoint (flag-parsed addr, signal-aware
// shutdown, a startup log line) adapted from running a websocket server
// to running a local two-replica scenario.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Polqt/automerge-go/doclog"
	"github.com/Polqt/automerge-go/document"
	"github.com/Polqt/automerge-go/op"
	"github.com/Polqt/automerge-go/patch"
	"go.uber.org/zap"
)

func main() {
	verbose := flag.Bool("v", false, "enable debug-level logging")
	text := flag.String("text", "hello", "initial text content for the demo document")
	flag.Parse()

	logger := newLogger(*verbose)
	defer logger.Sync()
	doclog.Replace(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *text); err != nil {
		logger.Fatal("demo failed", zap.Error(err))
	}
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	return logger
}

func run(ctx context.Context, logger *zap.Logger, initialText string) error {
	alice := document.New(document.Config{})
	bob := document.New(document.Config{})

	alice.Observe(patch.SinkFunc(func(p patch.Patch) {
		logger.Debug("alice patch", zap.Int("kind", int(p.Kind)))
	}))

	tx := alice.Begin()
	textObj, err := tx.PutObject(op.RootObject, "content", op.ObjTypeText)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("creating text object: %w", err)
	}
	for i, r := range initialText {
		if err := tx.Insert(textObj, i, op.StringValue(string(r))); err != nil {
			tx.Rollback()
			return fmt.Errorf("seeding text: %w", err)
		}
	}
	if _, err := tx.Commit("seed content", 0); err != nil {
		return fmt.Errorf("committing seed: %w", err)
	}

	saved, err := alice.Save()
	if err != nil {
		return fmt.Errorf("saving alice: %w", err)
	}
	if err := bob.LoadInto(saved); err != nil {
		return fmt.Errorf("loading into bob: %w", err)
	}

	aliceTx := alice.Begin()
	if err := aliceTx.SpliceText(textObj, len(initialText), 0, ", from alice"); err != nil {
		aliceTx.Rollback()
		return fmt.Errorf("alice edit: %w", err)
	}
	if _, err := aliceTx.Commit("alice edit", 0); err != nil {
		return fmt.Errorf("committing alice edit: %w", err)
	}

	bobTx := bob.Begin()
	if err := bobTx.SpliceText(textObj, 0, 0, "bob says hi, "); err != nil {
		bobTx.Rollback()
		return fmt.Errorf("bob edit: %w", err)
	}
	if _, err := bobTx.Commit("bob edit", 0); err != nil {
		return fmt.Errorf("committing bob edit: %w", err)
	}

	bobChanges := bob.GetChanges(nil)
	if _, err := alice.ApplyChanges(bobChanges); err != nil {
		logger.Warn("applying bob's changes produced errors", zap.Error(err))
	}

	merged, err := alice.Text(textObj)
	if err != nil {
		return fmt.Errorf("reading merged text: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	fmt.Println(merged)
	logger.Info("demo complete", zap.String("result", merged))
	return nil
}
