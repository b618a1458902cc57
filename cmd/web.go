package cmd

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rubiojr/ordframe/cmd/web/components"
	"github.com/rubiojr/ordframe/cmd/web/components/types"
	"github.com/rubiojr/ordframe/pkg/api"
	"github.com/rubiojr/ordframe/pkg/catalog"
	"github.com/rubiojr/ordframe/pkg/config"
	"github.com/rubiojr/ordframe/pkg/log"
	"github.com/rubiojr/ordframe/pkg/ordinals"
	"github.com/rubiojr/ordframe/pkg/realtime"
	"github.com/rubiojr/ordframe/pkg/refresh"
	"github.com/rubiojr/ordframe/pkg/selection"
	"github.com/rubiojr/ordframe/pkg/store"
	"github.com/rubiojr/ordframe/pkg/version"
	"github.com/urfave/cli/v3"
)

//go:embed web/static/*
var staticFS embed.FS

var webLogger = log.ForService("web")

// cachePurgeInterval is how often expired API and content cache entries are
// dropped while the web server runs.
const cachePurgeInterval = time.Hour

// WebCommand creates the web command serving the pages, the JSON API and the
// frame sessions.
func WebCommand() *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Start the frame web server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to bind to (overrides config)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on (overrides config)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return startWebServer(ctx, c.String("config"), c.Bool("debug"), c.String("host"), c.Int("port"))
		},
	}
}

// WebServer holds the page handlers' dependencies.
type WebServer struct {
	store     *store.Store
	catalog   *catalog.Service
	hub       *realtime.Hub
	apiServer *api.Server

	mu     sync.RWMutex
	config *config.Config
}

func newWebServer(cfg *config.Config, st *store.Store, cat *catalog.Service, content api.ContentSource, hub *realtime.Hub, debug bool) *WebServer {
	apiServer := api.NewServer(st, cat, content, api.Info{Debug: debug, StorageDir: cfg.StorageDir})
	apiServer.SetHub(hub)
	apiServer.SetViewerDefaults(viewerDefaults(cfg))
	return &WebServer{
		store:     st,
		catalog:   cat,
		hub:       hub,
		apiServer: apiServer,
		config:    cfg,
	}
}

func viewerDefaults(cfg *config.Config) api.ViewerDefaults {
	return api.ViewerDefaults{
		HoldDuration:    cfg.Display.TouchHold.Duration,
		TapMax:          cfg.Display.TapMax.Duration,
		MetadataTimeout: cfg.Display.MetadataTimeout.Duration,
	}
}

func refreshConfig(cfg *config.Config) refresh.Config {
	return refresh.Config{
		Address:       cfg.Address,
		Interval:      cfg.RefreshInterval.Duration,
		PurgeInterval: cachePurgeInterval,
	}
}

// storeSlideshowInterval makes the configured interval the one frames embed.
func (s *WebServer) storeSlideshowInterval(ctx context.Context, cfg *config.Config) {
	interval := cfg.Display.SlideshowInterval.Duration
	if interval <= 0 {
		return
	}
	if err := s.store.SetSlideshowInterval(ctx, interval); err != nil {
		webLogger.Warnf("Storing slideshow interval: %v", err)
	}
}

func (s *WebServer) currentConfig() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// applyConfig swaps in a reloaded configuration. Sessions opened from now on
// use the new timings; open frames are told to reload.
func (s *WebServer) applyConfig(ctx context.Context, cfg *config.Config) {
	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()
	s.apiServer.SetViewerDefaults(viewerDefaults(cfg))
	s.storeSlideshowInterval(ctx, cfg)
	s.hub.Broadcast(realtime.NewEvent(realtime.EventConfig, ""))
}

// Router builds the complete HTTP handler.
func (s *WebServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	s.apiServer.RegisterRoutes(r)

	r.Get("/", s.handleHome)
	r.Get("/setup", s.handleSetup)
	r.Post("/setup", s.handleSetupSubmit)
	r.Get("/select", s.handleSelect)
	r.Post("/select", s.handleSelectSubmit)
	r.Get("/frame", s.handleFrame)

	static, err := fs.Sub(staticFS, "web/static")
	if err != nil {
		panic(fmt.Sprintf("static assets: %v", err))
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.render(w, r, http.StatusNotFound, components.NotFound(s.pageData("Not found")))
	})
	return r
}

// startWebServer runs the server until SIGINT or SIGTERM.
func startWebServer(ctx context.Context, configPath string, debug bool, host string, port int) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	logCloser, err := setupLogging(cfg, debug)
	if err != nil {
		return err
	}
	defer func() {
		if err := logCloser.Close(); err != nil {
			fmt.Printf("Warning: failed to close log file: %v\n", err)
		}
	}()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)

	hub := realtime.NewHub(0)
	hiroClient := newHiroClient(cfg, st)
	cat := catalog.NewService(hiroClient, st, hub)
	webServer := newWebServer(cfg, st, cat, hiroClient, hub, debug)
	webServer.storeSlideshowInterval(ctx, cfg)

	refresher := refresh.New(refreshConfig(cfg), cat, st)
	refreshCtx, refreshCancel := context.WithCancel(ctx)
	defer refreshCancel()
	if err := refresher.Start(refreshCtx); err != nil {
		return fmt.Errorf("starting refresher: %w", err)
	}
	defer refresher.Stop()

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           webServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", server.Addr, err)
	}

	if cfg.MDNS.Enabled {
		stopMDNS, err := startMDNSAdvertiser(cfg)
		if err != nil {
			webLogger.Warnf("mDNS advertisement disabled: %v", err)
		} else {
			defer stopMDNS()
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		webLogger.Infof("Starting web server on http://%s", server.Addr)
		webLogger.Infof("  GET /        overview")
		webLogger.Infof("  GET /setup   fetch an address")
		webLogger.Infof("  GET /select  choose inscriptions")
		webLogger.Infof("  GET /frame   slideshow")
		webLogger.Infof("  GET /api/... JSON API")
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	watchCtx, watchCancel := context.WithCancel(ctx)
	defer watchCancel()
	go watchConfig(watchCtx, configPath, func() {
		newCfg, err := config.LoadConfig(configPath)
		if err != nil {
			webLogger.Errorf("Failed to reload configuration: %v", err)
			return
		}
		if err := log.SetLevel(newCfg.LogLevel); err != nil {
			webLogger.Warnf("Ignoring log level: %v", err)
		}
		if debug {
			log.SetGlobalDebug(true)
		}
		refresher.Reconfigure(refreshConfig(newCfg))
		webServer.applyConfig(watchCtx, newCfg)
		webLogger.Infof("Configuration reloaded")
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	case <-sigCh:
	case <-ctx.Done():
	}

	webLogger.Infof("Shutting down web server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func (s *WebServer) pageData(title string) types.PageData {
	return types.PageData{
		Title:   title + " - Ordinal Frame",
		Version: version.APIVersion(),
	}
}

// render writes c with the given status. templ answers 500 itself if the
// component fails.
func (s *WebServer) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	templ.Handler(c, templ.WithStatus(status)).ServeHTTP(w, r)
}

func (s *WebServer) serverError(w http.ResponseWriter, r *http.Request, err error) {
	webLogger.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	data := s.pageData("Error")
	data.Error = err.Error()
	s.render(w, r, http.StatusInternalServerError, components.ServerError(data))
}

func (s *WebServer) handleHome(w http.ResponseWriter, r *http.Request) {
	cat, err := s.store.Catalog(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	sel, err := s.store.Selection(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	data := s.pageData("Home")
	data.Address = cat.Address
	data.TotalCount = cat.TotalCount
	data.ImageCount = cat.ImageCount
	data.LastUpdated = cat.LastUpdated
	data.SelectedCount = len(sel.SelectedIDs)
	s.render(w, r, http.StatusOK, components.Index(data))
}

func (s *WebServer) handleSetup(w http.ResponseWriter, r *http.Request) {
	data := s.pageData("Setup")
	cat, err := s.store.Catalog(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	data.Address = cat.Address
	if data.Address == "" {
		data.Address = s.currentConfig().Address
	}
	s.render(w, r, http.StatusOK, components.Setup(data))
}

func (s *WebServer) handleSetupSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	address := r.PostForm.Get("address")

	_, err := s.catalog.FetchAddress(r.Context(), address)
	if err == nil {
		http.Redirect(w, r, "/select", http.StatusSeeOther)
		return
	}

	data := s.pageData("Setup")
	data.Address = address
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, ordinals.ErrAddressRequired), errors.Is(err, ordinals.ErrInvalidAddress):
		data.Error = err.Error()
		status = http.StatusBadRequest
	default:
		webLogger.Errorf("Fetching %s: %v", address, err)
		data.Error = "Error fetching Ordinals: " + err.Error()
	}
	s.render(w, r, status, components.Setup(data))
}

// publishingBackend saves through the store and tells open frames to
// reload.
type publishingBackend struct {
	store *store.Store
	hub   *realtime.Hub
}

func (b publishingBackend) LoadSelection(ctx context.Context) ([]string, error) {
	return b.store.LoadSelection(ctx)
}

func (b publishingBackend) SaveSelection(ctx context.Context, ids []string) error {
	if err := b.store.SaveSelection(ctx, ids); err != nil {
		return err
	}
	b.hub.Broadcast(realtime.NewEvent(realtime.EventSelection, strconv.Itoa(len(ids))))
	return nil
}

func (s *WebServer) handleSelect(w http.ResponseWriter, r *http.Request) {
	cat, err := s.store.Catalog(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	ctl := selection.New(cat.Ordinals, nil, publishingBackend{store: s.store, hub: s.hub})
	if err := ctl.LoadExisting(r.Context()); err != nil {
		webLogger.Warnf("Loading existing selection: %v", err)
	}
	s.renderSelect(w, r, http.StatusOK, cat, ctl, nil)
}

func (s *WebServer) handleSelectSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	cat, err := s.store.Catalog(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	ctl := selection.New(cat.Ordinals, r.PostForm["id"], publishingBackend{store: s.store, hub: s.hub})
	status := http.StatusOK
	switch action := r.PostForm.Get("action"); action {
	case "all":
		ctl.SelectAll()
	case "none":
		ctl.SelectNone()
	case "rare":
		ctl.SelectRare()
	case "save", "":
		if _, err := ctl.Save(r.Context()); err != nil && !errors.Is(err, selection.ErrEmptySelection) {
			status = http.StatusInternalServerError
		}
	default:
		http.Error(w, "Unknown action", http.StatusBadRequest)
		return
	}

	var res *selection.Result
	if saved, ok := ctl.Result(); ok {
		res = &saved
	}
	s.renderSelect(w, r, status, cat, ctl, res)
}

func (s *WebServer) renderSelect(w http.ResponseWriter, r *http.Request, status int, cat store.Catalog, ctl *selection.Controller, res *selection.Result) {
	data := s.pageData("Select")
	data.Address = cat.Address
	data.TotalCount = cat.TotalCount
	data.ImageCount = cat.ImageCount
	data.LastUpdated = cat.LastUpdated
	data.SelectedCount = ctl.Count()
	data.SaveEnabled = ctl.SaveEnabled()
	data.Cards = make([]types.OrdinalCard, 0, len(cat.Ordinals))
	for _, o := range cat.Ordinals {
		data.Cards = append(data.Cards, newOrdinalCard(o, ctl.IsSelected(o.ID)))
	}

	if res != nil {
		switch res.Kind {
		case selection.KindSuccess:
			data.Success = res.Message
			data.Redirect = res.Redirect
			data.RedirectAfter = int(res.RedirectAfter / time.Second)
		default:
			data.Error = res.Message
		}
	}
	s.render(w, r, status, components.Select(data))
}

func newOrdinalCard(o ordinals.Ordinal, selected bool) types.OrdinalCard {
	ov := o.Overlay()
	return types.OrdinalCard{
		ID:          o.ID,
		Title:       ov.Title,
		ContentPath: o.ContentPath(),
		Type:        ov.Type,
		Size:        ov.Size,
		Collection:  ov.Collection,
		Rarity:      ov.Rarity,
		RarityLabel: rarityLabel(ov.Rarity),
		RarityClass: ov.RarityClass,
		IsHTML:      o.Kind() == ordinals.KindHTML,
		Selected:    selected,
	}
}

func (s *WebServer) handleFrame(w http.ResponseWriter, r *http.Request) {
	sel, err := s.store.Selection(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	items, err := s.store.SelectedOrdinals(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if len(items) == 0 {
		http.Redirect(w, r, "/setup", http.StatusFound)
		return
	}

	payload, err := json.Marshal(items)
	if err != nil {
		s.serverError(w, r, fmt.Errorf("encoding ordinals: %w", err))
		return
	}

	data := s.pageData("Frame")
	data.OrdinalsJSON = string(payload)
	data.Interval = sel.SlideshowInterval
	s.render(w, r, http.StatusOK, components.Frame(data))
}
