package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kanriapp/kanri/internal/daemon"
	"github.com/kanriapp/kanri/internal/devserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local development backend",
	Long: `Run a local backend speaking the same auth and REST dialect as the
hosted service, backed by a SQLite database. Point the client at it with
backend.url (the default) to work fully offline.

Runs in the foreground by default. Use 'serve start' to run it in the
background, 'serve stop' to stop it, and 'serve status' to check on it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun()
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the dev server in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background dev server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background dev server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8765, "port to listen on")
	_ = viper.BindPFlag("serve.port", serveCmd.Flags().Lookup("port"))

	serveCmd.AddCommand(serveStartCmd)
	serveCmd.AddCommand(serveStopCmd)
	serveCmd.AddCommand(serveStatusCmd)
	rootCmd.AddCommand(serveCmd)
}

func pidFile() *daemon.PIDFile {
	dir, err := configDirFunc()
	if err != nil {
		dir = "."
	}
	return daemon.NewPIDFile(filepath.Join(dir, "kanri-serve.pid"))
}

func serveLogPath() string {
	dir, err := configDirFunc()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "kanri-serve.log")
}

func serveRun() error {
	dbPath := viper.GetString("serve.db_path")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := devserver.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
	defer stop()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	srv := devserver.NewServer(store,
		viper.GetString("backend.api_key"),
		viper.GetString("serve.jwt_secret"),
		log,
	)

	addr := fmt.Sprintf(":%d", viper.GetInt("serve.port"))
	httpSrv := &http.Server{Addr: addr, Handler: srv.Router()}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()
	log.Info("dev server listening", "addr", fmt.Sprintf("http://localhost%s", addr), "db", dbPath)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func serveStartRun() error {
	pf := pidFile()
	if pid, running := pf.Alive(); running {
		return fmt.Errorf("dev server already running (pid %d)", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}

	logPath := serveLogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	child := exec.Command(exe, "serve", "--port", fmt.Sprint(viper.GetInt("serve.port")))
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)

	if err := child.Start(); err != nil {
		return fmt.Errorf("failed to start dev server: %w", err)
	}
	if err := pf.WritePID(child.Process.Pid); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	ui.Success("Dev server started (pid %d)", child.Process.Pid)
	ui.Info("Listening on http://localhost:%d, logs at %s", viper.GetInt("serve.port"), logPath)
	return nil
}

func serveStopRun() error {
	pf := pidFile()
	pid, err := pf.Stop(5 * time.Second)
	if err != nil {
		return fmt.Errorf("dev server is %w", err)
	}
	_ = pf.Remove()
	ui.Success("Dev server stopped (pid %d)", pid)
	return nil
}

func serveStatusRun() error {
	pf := pidFile()
	if pid, running := pf.Alive(); running {
		ui.Info("Dev server running (pid %d) on port %d", pid, viper.GetInt("serve.port"))
		return nil
	}
	ui.Info("Dev server not running")
	return nil
}
