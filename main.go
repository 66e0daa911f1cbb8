package main

import (
	"codeberg.org/miketth/wlkeymap/pkg/keymap"
	"codeberg.org/miketth/wlkeymap/pkg/keymapstore/json"
	"codeberg.org/miketth/wlkeymap/pkg/keymapstore/memory"
	"codeberg.org/miketth/wlkeymap/pkg/keymapstore/sqlite"
	"codeberg.org/miketth/wlkeymap/pkg/keymapwatch"
	"codeberg.org/miketth/wlkeymap/pkg/wayland"
	"context"
	"errors"
	"flag"
	"fmt"
	"github.com/adrg/xdg"
	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

func main() {
	err := run()
	if err != nil {
		log.Fatalf("error: %+v", err)
	}
}

func run() error {
	storeKind := flag.String("store", "sqlite", "where to record keymaps: sqlite, json, memory or none")
	storePath := flag.String("store-path", "", "keymap store file (default in $XDG_STATE_HOME/wlkeymap)")
	printKeymaps := flag.Bool("print", true, "print every keymap to stdout")
	once := flag.Bool("once", false, "exit after the first keymap")
	dedupe := flag.Bool("dedupe-keyboards", false, "request a keyboard only when a seat gains the keyboard capability")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log, err := newLogger(*debug)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	errChan := make(chan error, 3)

	sinks := keymapwatch.Sinks{systemdStatus{}}
	if *printKeymaps {
		sinks = append(sinks, keymapwatch.Printer{W: os.Stdout})
	}

	var jsonStore *json.KeymapStore
	switch *storeKind {
	case "sqlite":
		path, err := getStorePath(*storePath, "keymaps.db")
		if err != nil {
			return err
		}
		store, err := sqlite.NewKeymapStore(path, log)
		if err != nil {
			return fmt.Errorf("create keymap store: %w", err)
		}
		defer store.Close()
		sinks = append(sinks, keymapwatch.StoreSink{Store: store, Log: log})

	case "json":
		path, err := getStorePath(*storePath, "keymaps.json")
		if err != nil {
			return err
		}
		store, err := json.NewKeymapStore(path)
		if err != nil {
			return fmt.Errorf("create keymap store: %w", err)
		}
		defer store.Close()
		sinks = append(sinks, keymapwatch.StoreSink{Store: store, Log: log})
		jsonStore = store

	case "memory":
		sinks = append(sinks, keymapwatch.StoreSink{Store: memory.NewKeymapStore(), Log: log})

	case "none":

	default:
		return fmt.Errorf("unknown store %q", *storeKind)
	}

	var sink keymapwatch.Sink = sinks
	if *once {
		sink = keymapwatch.Once{Sink: sinks}
	}

	conn, err := wayland.Connect(log.Named("wayland"))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	watcher := keymapwatch.NewWatcher(conn, sink, log, keymapwatch.Options{
		DedupeKeyboards: *dedupe,
	})

	log.Info("started wlkeymap")

	if jsonStore != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := jsonStore.SaveLooper(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				errChan <- fmt.Errorf("save keymaps: %w", err)
			}
		}()
	}

	wg.Add(2)

	go func() {
		defer wg.Done()
		err := watcher.Run(ctx)
		if err != nil {
			err = fmt.Errorf("watch keymaps: %w", err)
		}
		errChan <- err
	}()

	go func() {
		defer wg.Done()
		err := systemdNotifyLoop(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			errChan <- fmt.Errorf("systemd notify: %w", err)
		}
	}()

	err = <-errChan
	cancel()
	wg.Wait()

	switch {
	case err == nil, errors.Is(err, context.Canceled):
		log.Info("shutting down")
		return nil
	default:
		return err
	}
}

func systemdNotifyLoop(ctx context.Context) error {
	// tell systemd that we're ready
	supported, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		return fmt.Errorf("notify systemd: %w", err)
	}
	if !supported {
		return nil
	}

	_, _ = daemon.SdNotify(false, "STATUS=Waiting for a keymap")

	t, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return fmt.Errorf("check watchdog: %w", err)
	}
	// if watchdog is not enabled, we don't need to notify it
	if t == 0 {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
			return ctx.Err()

		case <-time.After(t / 2):
			_, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			if err != nil {
				return fmt.Errorf("notify watchdog: %w", err)
			}
		}
	}
}

// systemdStatus shows the current keymap in systemctl status.
type systemdStatus struct{}

func (systemdStatus) KeymapReceived(km keymap.Keymap) error {
	_, _ = daemon.SdNotify(false, fmt.Sprintf("STATUS=Keymap %.12s from keyboard %d", km.Digest(), km.Keyboard))
	return nil
}

func (systemdStatus) KeymapFailed(err error) {
	_, _ = daemon.SdNotify(false, "STATUS=Keymap unavailable: "+err.Error())
}

func getStorePath(flagValue, name string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}

	path, err := xdg.StateFile("wlkeymap/" + name)
	if err != nil {
		return "", fmt.Errorf("get state file: %w", err)
	}

	return path, nil
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	loggerConfig := zap.NewDevelopmentConfig()

	// stdout carries the keymaps
	loggerConfig.OutputPaths = []string{"stderr"}
	loggerConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if !debug {
		loggerConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return logger.Sugar(), nil
}
