package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rubiojr/ordframe/pkg/catalog"
	"github.com/rubiojr/ordframe/pkg/config"
	"github.com/rubiojr/ordframe/pkg/hiro"
	"github.com/rubiojr/ordframe/pkg/ordinals"
	"github.com/rubiojr/ordframe/pkg/realtime"
	"github.com/rubiojr/ordframe/pkg/store"
)

const testAddress = "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"

type stubSource struct {
	list []ordinals.Ordinal
	err  error
}

func (s *stubSource) FetchAddressInscriptions(ctx context.Context, address string) ([]ordinals.Ordinal, error) {
	return s.list, s.err
}

type stubContent struct{}

func (stubContent) FetchContent(ctx context.Context, id string) (hiro.Content, error) {
	return hiro.Content{}, errors.New("not found")
}

type webEnv struct {
	server  *WebServer
	store   *store.Store
	source  *stubSource
	hub     *realtime.Hub
	handler http.Handler
}

func setupTestWebServer(t *testing.T) *webEnv {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "ordframe.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	hub := realtime.NewHub(8)
	src := &stubSource{}
	cfg := &config.Config{StorageDir: t.TempDir()}
	ws := newWebServer(cfg, st, catalog.NewService(src, st, hub), stubContent{}, hub, false)
	return &webEnv{server: ws, store: st, source: src, hub: hub, handler: ws.Router()}
}

func testOrdinals() []ordinals.Ordinal {
	return []ordinals.Ordinal{
		{ID: "aaai0", Number: 1, ContentType: "image/png", ContentLength: 2048},
		{ID: "bbbi0", Number: 2, ContentType: "image/svg+xml", ContentLength: 512, SatRarity: "uncommon"},
		{ID: "ccci0", Number: 3, ContentType: "image/webp", ContentLength: 100, SatRarity: "common"},
	}
}

func (e *webEnv) seedCatalog(t *testing.T) {
	t.Helper()
	list := testOrdinals()
	err := e.store.SaveCatalog(context.Background(), store.Catalog{
		Ordinals:   list,
		Address:    testAddress,
		TotalCount: len(list) + 2,
		ImageCount: len(list),
	})
	if err != nil {
		t.Fatalf("save catalog: %v", err)
	}
}

func (e *webEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *webEnv) post(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func assertContains(t *testing.T, body, want string) {
	t.Helper()
	if !strings.Contains(body, want) {
		t.Errorf("body does not contain %q", want)
	}
}

func assertNotContains(t *testing.T, body, unwanted string) {
	t.Helper()
	if strings.Contains(body, unwanted) {
		t.Errorf("body unexpectedly contains %q", unwanted)
	}
}

func TestHomeWithoutCatalog(t *testing.T) {
	env := setupTestWebServer(t)
	w := env.get(t, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	assertContains(t, w.Body.String(), "Get started")
}

func TestHomeSummarizesCatalog(t *testing.T) {
	env := setupTestWebServer(t)
	env.seedCatalog(t)
	if err := env.store.SaveSelection(context.Background(), []string{"aaai0"}); err != nil {
		t.Fatalf("save selection: %v", err)
	}

	body := env.get(t, "/").Body.String()
	assertContains(t, body, testAddress)
	assertContains(t, body, "3 image inscriptions of 5, 1 selected for display.")
	assertContains(t, body, `href="/frame"`)
}

func TestSetupPrefillsConfiguredAddress(t *testing.T) {
	env := setupTestWebServer(t)
	env.server.applyConfig(context.Background(), &config.Config{Address: testAddress})

	body := env.get(t, "/setup").Body.String()
	assertContains(t, body, `value="`+testAddress+`"`)
}

func TestSetupSubmitFetchesAndRedirects(t *testing.T) {
	env := setupTestWebServer(t)
	env.source.list = append(testOrdinals(), ordinals.Ordinal{ID: "txti0", ContentType: "text/plain"})

	w := env.post(t, "/setup", url.Values{"address": {"  " + testAddress + " "}})
	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/select" {
		t.Errorf("expected redirect to /select, got %q", loc)
	}

	cat, err := env.store.Catalog(context.Background())
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if cat.Address != testAddress || cat.TotalCount != 4 || cat.ImageCount != 3 {
		t.Errorf("unexpected catalog: %+v", cat)
	}
}

func TestSetupSubmitErrors(t *testing.T) {
	tests := []struct {
		name      string
		address   string
		sourceErr error
		status    int
		message   string
	}{
		{"empty", "", nil, http.StatusBadRequest, "Address is required"},
		{"invalid", "bc1short", nil, http.StatusBadRequest, "Invalid Bitcoin address format"},
		{"upstream", testAddress, errors.New("boom"), http.StatusBadGateway, "Error fetching Ordinals"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestWebServer(t)
			env.source.err = tt.sourceErr

			w := env.post(t, "/setup", url.Values{"address": {tt.address}})
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, w.Code)
			}
			assertContains(t, w.Body.String(), tt.message)
		})
	}
}

func TestSelectShowsStoredSelection(t *testing.T) {
	env := setupTestWebServer(t)
	env.seedCatalog(t)
	if err := env.store.SaveSelection(context.Background(), []string{"bbbi0"}); err != nil {
		t.Fatalf("save selection: %v", err)
	}

	w := env.get(t, "/select")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	assertContains(t, body, `value="bbbi0" checked`)
	assertNotContains(t, body, `value="aaai0" checked`)
	assertContains(t, body, "1 selected")
	assertContains(t, body, "Inscription #2")
	assertContains(t, body, "rarity-badge rarity-uncommon")
}

func TestSelectWithoutCatalog(t *testing.T) {
	env := setupTestWebServer(t)
	body := env.get(t, "/select").Body.String()
	assertContains(t, body, "No inscriptions yet")
}

func TestSelectBulkActions(t *testing.T) {
	tests := []struct {
		action  string
		checked []string
		count   string
	}{
		{"all", []string{"aaai0", "bbbi0", "ccci0"}, "3 selected"},
		{"none", nil, "0 selected"},
		{"rare", []string{"bbbi0"}, "1 selected"},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			env := setupTestWebServer(t)
			env.seedCatalog(t)

			w := env.post(t, "/select", url.Values{"action": {tt.action}, "id": {"aaai0", "ccci0"}})
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", w.Code)
			}
			body := w.Body.String()
			assertContains(t, body, tt.count)
			for _, id := range tt.checked {
				assertContains(t, body, `value="`+id+`" checked`)
			}
			if tt.action == "none" {
				assertContains(t, body, `id="saveBtn" class="button button-primary" disabled`)
			}

			// Bulk actions never persist.
			ids, err := env.store.LoadSelection(context.Background())
			if err != nil {
				t.Fatalf("load selection: %v", err)
			}
			if len(ids) != 0 {
				t.Errorf("expected nothing stored, got %v", ids)
			}
		})
	}
}

func TestSelectSavePersistsAndNotifies(t *testing.T) {
	env := setupTestWebServer(t)
	env.seedCatalog(t)
	id, events := env.hub.Register()
	defer env.hub.Unregister(id)

	w := env.post(t, "/select", url.Values{"action": {"save"}, "id": {"ccci0", "aaai0"}})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	assertContains(t, body, "Selection saved! 2 Ordinals selected for display.")
	assertContains(t, body, `content="2;url=/frame"`)

	ids, err := env.store.LoadSelection(context.Background())
	if err != nil {
		t.Fatalf("load selection: %v", err)
	}
	if len(ids) != 2 || ids[0] != "aaai0" || ids[1] != "ccci0" {
		t.Errorf("expected [aaai0 ccci0] in catalog order, got %v", ids)
	}

	select {
	case ev := <-events:
		if ev.Type != realtime.EventSelection {
			t.Errorf("expected selection event, got %s", ev.Type)
		}
	default:
		t.Error("expected a selection event")
	}
}

func TestSelectSaveEmpty(t *testing.T) {
	env := setupTestWebServer(t)
	env.seedCatalog(t)

	w := env.post(t, "/select", url.Values{"action": {"save"}})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	assertContains(t, body, "Please select at least one Ordinal to display.")
	assertNotContains(t, body, `http-equiv="refresh"`)
}

func TestSelectUnknownAction(t *testing.T) {
	env := setupTestWebServer(t)
	env.seedCatalog(t)
	if w := env.post(t, "/select", url.Values{"action": {"shuffle"}}); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestFrameRedirectsWithoutSelection(t *testing.T) {
	env := setupTestWebServer(t)
	env.seedCatalog(t)

	w := env.get(t, "/frame")
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/setup" {
		t.Errorf("expected redirect to /setup, got %q", loc)
	}
}

func TestFrameEmbedsSelection(t *testing.T) {
	env := setupTestWebServer(t)
	env.seedCatalog(t)
	if err := env.store.SaveSelection(context.Background(), []string{"bbbi0"}); err != nil {
		t.Fatalf("save selection: %v", err)
	}

	w := env.get(t, "/frame")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	assertContains(t, body, `data-slideshow-interval="30"`)
	assertContains(t, body, "bbbi0")
	assertNotContains(t, body, "aaai0")
	assertContains(t, body, `src="/static/frame.js"`)
}

func TestStaticAssets(t *testing.T) {
	env := setupTestWebServer(t)
	for _, path := range []string{"/static/style.css", "/static/frame.js", "/static/select.js"} {
		if w := env.get(t, path); w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, w.Code)
		}
	}
}

func TestNotFoundPage(t *testing.T) {
	env := setupTestWebServer(t)
	w := env.get(t, "/nope")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	assertContains(t, w.Body.String(), "<html")
}

func TestAPIRoutesMounted(t *testing.T) {
	env := setupTestWebServer(t)
	w := env.get(t, "/api/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	assertContains(t, w.Body.String(), `"status":"healthy"`)
}

func TestApplyConfigBroadcasts(t *testing.T) {
	env := setupTestWebServer(t)
	id, events := env.hub.Register()
	defer env.hub.Unregister(id)

	env.server.applyConfig(context.Background(), &config.Config{Address: testAddress})
	select {
	case ev := <-events:
		if ev.Type != realtime.EventConfig {
			t.Errorf("expected config event, got %s", ev.Type)
		}
	default:
		t.Error("expected a config event")
	}
	if got := env.server.currentConfig().Address; got != testAddress {
		t.Errorf("config not swapped, address %q", got)
	}
}

func TestApplyConfigStoresSlideshowInterval(t *testing.T) {
	env := setupTestWebServer(t)
	env.seedCatalog(t)
	if err := env.store.SaveSelection(context.Background(), []string{"aaai0"}); err != nil {
		t.Fatalf("save selection: %v", err)
	}

	cfg := &config.Config{}
	cfg.Display.SlideshowInterval = config.Duration{Duration: 12 * time.Second}
	env.server.applyConfig(context.Background(), cfg)

	assertContains(t, env.get(t, "/frame").Body.String(), `data-slideshow-interval="12"`)
}

func TestFilterAdvertiseIPs(t *testing.T) {
	cidr := func(s string) net.Addr {
		ip, n, err := net.ParseCIDR(s)
		if err != nil {
			t.Fatalf("parse %s: %v", s, err)
		}
		n.IP = ip
		return n
	}

	got := filterAdvertiseIPs([]net.Addr{
		cidr("127.0.0.1/8"),
		cidr("fe80::1/64"),
		cidr("2001:db8::2/64"),
		cidr("192.168.1.20/24"),
		cidr("192.168.1.20/24"),
		cidr("10.0.0.5/8"),
		&net.UnixAddr{Name: "/tmp/sock", Net: "unix"},
	})

	want := []string{"10.0.0.5", "192.168.1.20", "2001:db8::2"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("index %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestFilterAdvertiseIPsEmpty(t *testing.T) {
	if got := filterAdvertiseIPs(nil); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestMDNSInstance(t *testing.T) {
	if got := mdnsInstance(" living-room "); got != "living-room" {
		t.Errorf("expected configured name, got %q", got)
	}
	if got := mdnsInstance(""); !strings.HasPrefix(got, "ordframe") {
		t.Errorf("expected ordframe prefix, got %q", got)
	}
}
