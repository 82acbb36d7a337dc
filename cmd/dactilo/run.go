package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/dactilo/internal/app"
	"github.com/ayusman/dactilo/internal/config"
	"github.com/ayusman/dactilo/internal/logging"
	"github.com/ayusman/dactilo/internal/metrics"
	"github.com/ayusman/dactilo/internal/server"
	"github.com/ayusman/dactilo/internal/store"
	"github.com/ayusman/dactilo/internal/tray"
)

type runOptions struct {
	tray   bool
	idle   bool
	addr   string
	webDir string
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Recognize fingerspelling from the camera and serve the local API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRecognizer(cmd.Context(), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.tray, "tray", false, "show a system tray menu")
	cmd.Flags().BoolVar(&opts.idle, "idle", false, "start with recognition stopped")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "HTTP listen address (overrides config)")
	cmd.Flags().StringVar(&opts.webDir, "web", "", "directory of the web UI (default: search common locations)")
	return cmd
}

func runRecognizer(ctx context.Context, opts runOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}
	log := logging.WithComponent("main")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer st.Close()

	a := app.New(app.Options{Config: cfg, Store: st, Metrics: m})
	defer func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("Error during shutdown")
		}
	}()

	hub := server.NewEventHub(m)
	a.AddListener(hub)

	webDir := opts.webDir
	if webDir == "" {
		webDir = findWebDir()
	}
	if webDir != "" {
		log.Info().Str("dir", webDir).Msg("Serving web UI")
	}

	srv := server.New(server.Config{
		StaticDir:  webDir,
		Recognizer: a,
		Store:      st,
		Plugins:    a.Plugins(),
		Hub:        hub,
		Metrics:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Run(ctx) })
	g.Go(func() error { return srv.ListenAndServe(ctx, cfg.Server.Addr) })

	if !opts.idle {
		if err := a.Start(); err != nil {
			log.Warn().Err(err).Msg("Could not start recognition; start it from the API or tray")
		}
	}

	if opts.tray {
		t := tray.New(a.Session().Running())
		a.AddListener(t)
		t.OnToggle(a.Toggle)
		t.OnSettings(func() {
			if err := openBrowser(browserURL(cfg.Server.Addr)); err != nil {
				log.Error().Err(err).Msg("Failed to open browser")
			}
		})
		t.OnQuit(stop)
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		t.Run()
		stop()
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Shut down")
	return nil
}

// findWebDir returns the first existing web UI directory among "web",
// "../web" and the data directory.
func findWebDir() string {
	candidates := []string{"web", "../web", filepath.Join(config.XDGDataHome(), "dactilo", "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

// browserURL turns a listen address into a URL a browser can open.
func browserURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
