package sslenricher

import (
	"context"
	"encoding/pem"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"slices"
	"testing"

	"github.com/nao1215/autoarchiver/internal/model"
	"github.com/nao1215/autoarchiver/internal/module"
	"github.com/nao1215/autoarchiver/internal/netutil"
)

func newEnricher(t *testing.T, skipEmpty bool) *Enricher {
	t.Helper()
	inst, err := New(&module.Env{
		Name:    "ssl_enricher",
		Options: module.Options{"skip_when_nothing_archived": skipEmpty, "timeout": 5},
		Logger:  slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatal(err)
	}
	e := inst.(*Enricher)
	e.policy = netutil.Policy{Attempts: 1}
	return e
}

func newItem(t *testing.T, rawURL string) *model.Item {
	t.Helper()
	item, err := model.NewItemFromURL(rawURL)
	if err != nil {
		t.Fatal(err)
	}
	item.SetContext(model.CtxTmpDir, t.TempDir())
	return item
}

func TestEnrich(t *testing.T) {
	t.Parallel()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	t.Run("stores the served certificate", func(t *testing.T) {
		t.Parallel()

		item := newItem(t, srv.URL+"/page")
		if err := newEnricher(t, false).Enrich(context.Background(), item); err != nil {
			t.Fatal(err)
		}
		m := item.MediaByID(MediaID)
		if m == nil {
			t.Fatal("certificate media not added")
		}
		data, err := os.ReadFile(m.Filename)
		if err != nil {
			t.Fatal(err)
		}
		block, _ := pem.Decode(data)
		if block == nil || block.Type != "CERTIFICATE" {
			t.Fatalf("not a PEM certificate:\n%s", data)
		}
		if !slices.Equal(block.Bytes, srv.Certificate().Raw) {
			t.Error("stored certificate differs from the served one")
		}
		if names, _ := m.Get(PropDNSNames).([]string); !slices.Contains(names, "example.com") {
			t.Errorf("dns_names = %v", m.Get(PropDNSNames))
		}
		if got := m.Get(PropSerial); got != srv.Certificate().SerialNumber.String() {
			t.Errorf("serial_number = %v", got)
		}
		if m.Get(PropNotAfter) == nil || m.Get(PropIssuer) == nil || m.Get(PropVersion) == nil {
			t.Errorf("validity or issuer missing: %v", m.Properties)
		}
	})

	t.Run("skips items without media", func(t *testing.T) {
		t.Parallel()

		item := newItem(t, srv.URL)
		if err := newEnricher(t, true).Enrich(context.Background(), item); err != nil {
			t.Fatal(err)
		}
		if len(item.Media) != 0 {
			t.Errorf("unexpected media %v", item.Media)
		}
	})

	t.Run("rejects plain http", func(t *testing.T) {
		t.Parallel()

		item := newItem(t, "http://example.com")
		err := newEnricher(t, false).Enrich(context.Background(), item)
		if !errors.Is(err, ErrNotHTTPS) {
			t.Errorf("err = %v, want ErrNotHTTPS", err)
		}
	})

	t.Run("requires a working directory", func(t *testing.T) {
		t.Parallel()

		item, err := model.NewItemFromURL(srv.URL)
		if err != nil {
			t.Fatal(err)
		}
		if err := newEnricher(t, false).Enrich(context.Background(), item); !errors.Is(err, ErrNoTmpDir) {
			t.Errorf("err = %v, want ErrNoTmpDir", err)
		}
	})

	t.Run("unreachable host fails", func(t *testing.T) {
		t.Parallel()

		closed := httptest.NewTLSServer(http.NotFoundHandler())
		u := closed.URL
		closed.Close()

		item := newItem(t, u)
		if err := newEnricher(t, false).Enrich(context.Background(), item); err == nil {
			t.Error("expected an error for a closed port")
		}
	})
}
