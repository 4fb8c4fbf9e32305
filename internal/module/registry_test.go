package module

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/nao1215/autoarchiver/internal/model"
)

// fakeEnricher is a minimal enricher used by the registry tests.
type fakeEnricher struct {
	env       *Env
	setupErr  error
	setups    int
	cleanedUp *[]string
}

func (f *fakeEnricher) Enrich(context.Context, *model.Item) error { return nil }

func (f *fakeEnricher) Setup(context.Context) error {
	f.setups++
	return f.setupErr
}

func (f *fakeEnricher) Cleanup() error {
	if f.cleanedUp != nil {
		*f.cleanedUp = append(*f.cleanedUp, f.env.Name)
	}
	return nil
}

// fakeFeeder implements Feeder only.
type fakeFeeder struct{}

func (fakeFeeder) Feed(context.Context) iter.Seq2[*model.Item, error] {
	return func(func(*model.Item, error) bool) {}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func manifestFS(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for p, content := range files {
		fsys[p] = &fstest.MapFile{Data: []byte(content)}
	}
	return fsys
}

// TestDiscover tests module discovery across roots.
func TestDiscover(t *testing.T) {
	t.Parallel()

	t.Run("directories with a manifest qualify", func(t *testing.T) {
		t.Parallel()

		root := manifestFS(map[string]string{
			"hash_enricher/manifest.yaml": "name: Hash Enricher\ntype: [enricher]\nrequires_setup: false\n",
			"toml_db/manifest.toml":       "name = \"TOML DB\"\ntype = [\"database\"]\n",
			"not_a_module/README.md":      "nothing here",
		})
		reg := New(WithLogger(quietLogger()))
		if err := reg.Discover(Root{Name: "test", FS: root}); err != nil {
			t.Fatal(err)
		}

		got := strings.Join(reg.Names(), ",")
		if got != "hash_enricher,toml_db" {
			t.Fatalf("Names() = %s", got)
		}

		h, _ := reg.Get("hash_enricher")
		m := h.Manifest()
		if m.Name != "Hash Enricher" || m.NeedsSetup() || m.EntryPoint != "hash_enricher" || m.Version != "1.0" {
			t.Errorf("unexpected manifest %+v", m)
		}
		h, _ = reg.Get("toml_db")
		if !h.Manifest().NeedsSetup() {
			t.Error("requires_setup should default to true")
		}
		if got := reg.ByCapability(CapDatabase); len(got) != 1 || got[0] != "toml_db" {
			t.Errorf("ByCapability(database) = %v", got)
		}
	})

	t.Run("duplicate names across roots are fatal", func(t *testing.T) {
		t.Parallel()

		a := manifestFS(map[string]string{"dup/manifest.yaml": "type: [enricher]\n"})
		b := manifestFS(map[string]string{"dup/manifest.toml": "type = [\"enricher\"]\n"})
		reg := New(WithLogger(quietLogger()))
		err := reg.Discover(Root{Name: "a", FS: a}, Root{Name: "b", FS: b})
		if !errors.Is(err, ErrDuplicateModule) {
			t.Fatalf("expected ErrDuplicateModule, got %v", err)
		}
		if !strings.Contains(err.Error(), "a:dup") || !strings.Contains(err.Error(), "b:dup") {
			t.Errorf("error should name both locations: %v", err)
		}
	})

	t.Run("invalid manifests are rejected", func(t *testing.T) {
		t.Parallel()

		tests := map[string]string{
			"no type":                "name: x\n",
			"unknown type":           "type: [scraper]\n",
			"bad option type":        "type: [enricher]\nconfigs:\n  a:\n    type: float\n",
			"default not in choices": "type: [enricher]\nconfigs:\n  algo:\n    default: MD5\n    choices: [SHA-256]\n",
			"dotted option":          "type: [enricher]\nconfigs:\n  a.b:\n    default: 1\n",
		}
		for name, manifest := range tests {
			reg := New(WithLogger(quietLogger()))
			err := reg.Discover(Root{Name: "t", FS: manifestFS(map[string]string{"m/manifest.yaml": manifest})})
			if !errors.Is(err, ErrInvalidManifest) {
				t.Errorf("%s: expected ErrInvalidManifest, got %v", name, err)
			}
		}
	})

	t.Run("empty root yields no modules", func(t *testing.T) {
		t.Parallel()

		reg := New(WithLogger(quietLogger()))
		if err := reg.Discover(Root{Name: "empty", FS: fstest.MapFS{}}); err != nil {
			t.Errorf("unexpected error %v", err)
		}
	})
}

// TestMaterialize tests lazy construction of module instances.
func TestMaterialize(t *testing.T) {
	t.Parallel()

	t.Run("factory runs once for concurrent callers", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		table := NewTable()
		table.Register("hash_enricher", func(env *Env) (any, error) {
			calls.Add(1)
			return &fakeEnricher{env: env}, nil
		})
		reg := New(WithLogger(quietLogger()), WithTable(table))
		root := manifestFS(map[string]string{
			"hash_enricher/manifest.yaml": "type: [enricher]\nconfigs:\n  algorithm:\n    default: SHA-256\n    choices: [SHA-256, SHA3-512]\n",
		})
		if err := reg.Discover(Root{Name: "t", FS: root}); err != nil {
			t.Fatal(err)
		}

		var wg sync.WaitGroup
		results := make([]any, 8)
		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				inst, err := reg.Materialize(context.Background(), "hash_enricher")
				if err != nil {
					t.Error(err)
				}
				results[i] = inst
			}()
		}
		wg.Wait()

		if calls.Load() != 1 {
			t.Errorf("factory called %d times", calls.Load())
		}
		for _, r := range results[1:] {
			if r != results[0] {
				t.Fatal("callers received different instances")
			}
		}
		inst := results[0].(*fakeEnricher)
		if inst.setups != 1 {
			t.Errorf("setup called %d times", inst.setups)
		}
		if inst.env.Options.String("algorithm") != "SHA-256" {
			t.Errorf("default option not applied: %v", inst.env.Options)
		}
	})

	t.Run("configured values override defaults", func(t *testing.T) {
		t.Parallel()

		table := NewTable()
		table.Register("e", func(env *Env) (any, error) { return &fakeEnricher{env: env}, nil })
		reg := New(WithLogger(quietLogger()), WithTable(table))
		root := manifestFS(map[string]string{
			"e/manifest.yaml": "type: [enricher]\nconfigs:\n  chunksize:\n    default: 16000000\n    type: int\n",
		})
		if err := reg.Discover(Root{Name: "t", FS: root}); err != nil {
			t.Fatal(err)
		}
		reg.Configure(map[string]Options{"e": {"chunksize": 10}})

		inst, err := reg.Materialize(context.Background(), "e")
		if err != nil {
			t.Fatal(err)
		}
		if got := inst.(*fakeEnricher).env.Options.Int("chunksize"); got != 10 {
			t.Errorf("chunksize = %d, want 10", got)
		}
	})

	t.Run("every missing dependency is enumerated", func(t *testing.T) {
		t.Parallel()

		reg := New(
			WithLogger(quietLogger()),
			WithLookPath(func(string) (string, error) { return "", errors.New("not found") }),
		)
		root := manifestFS(map[string]string{
			"needy/manifest.yaml": strings.Join([]string{
				"type: [enricher]",
				"entry_point: missing_impl",
				"dependencies:",
				"  modules: [ghost]",
				"  bin: [ffmpeg]",
				"configs:",
				"  api_key:",
				"    required: true",
			}, "\n"),
		})
		if err := reg.Discover(Root{Name: "t", FS: root}); err != nil {
			t.Fatal(err)
		}

		_, err := reg.Materialize(context.Background(), "needy")
		var setupErr *SetupError
		if !errors.As(err, &setupErr) {
			t.Fatalf("expected SetupError, got %v", err)
		}
		if !errors.Is(err, ErrSetup) {
			t.Error("SetupError should wrap ErrSetup")
		}
		if len(setupErr.Missing) != 4 {
			t.Errorf("Missing = %v, want 4 entries", setupErr.Missing)
		}
		for _, want := range []string{"missing_impl", "ghost", "ffmpeg", "needy.api_key"} {
			if !strings.Contains(err.Error(), want) {
				t.Errorf("error %q does not mention %q", err, want)
			}
		}
	})

	t.Run("module dependencies materialize first", func(t *testing.T) {
		t.Parallel()

		var order []string
		var cleaned []string
		table := NewTable()
		for _, name := range []string{"base", "top"} {
			table.Register(name, func(env *Env) (any, error) {
				order = append(order, env.Name)
				return &fakeEnricher{env: env, cleanedUp: &cleaned}, nil
			})
		}
		reg := New(WithLogger(quietLogger()), WithTable(table))
		root := manifestFS(map[string]string{
			"base/manifest.yaml": "type: [enricher]\n",
			"top/manifest.yaml":  "type: [enricher]\ndependencies:\n  modules: [base]\n",
		})
		if err := reg.Discover(Root{Name: "t", FS: root}); err != nil {
			t.Fatal(err)
		}
		if _, err := reg.Materialize(context.Background(), "top"); err != nil {
			t.Fatal(err)
		}
		if strings.Join(order, ",") != "base,top" {
			t.Errorf("order = %v", order)
		}
		if err := reg.Cleanup(); err != nil {
			t.Fatal(err)
		}
		if strings.Join(cleaned, ",") != "top,base" {
			t.Errorf("cleanup order = %v", cleaned)
		}
	})

	t.Run("dependency cycles are setup errors", func(t *testing.T) {
		t.Parallel()

		table := NewTable()
		table.Register("a", func(env *Env) (any, error) { return &fakeEnricher{env: env}, nil })
		table.Register("b", func(env *Env) (any, error) { return &fakeEnricher{env: env}, nil })
		reg := New(WithLogger(quietLogger()), WithTable(table))
		root := manifestFS(map[string]string{
			"a/manifest.yaml": "type: [enricher]\ndependencies:\n  modules: [b]\n",
			"b/manifest.yaml": "type: [enricher]\ndependencies:\n  modules: [a]\n",
		})
		if err := reg.Discover(Root{Name: "t", FS: root}); err != nil {
			t.Fatal(err)
		}
		_, err := reg.Materialize(context.Background(), "a")
		if !errors.Is(err, ErrSetup) || !errors.Is(err, errCycle) {
			t.Errorf("expected cycle setup error, got %v", err)
		}
	})

	t.Run("advertised capability must be implemented", func(t *testing.T) {
		t.Parallel()

		table := NewTable()
		table.Register("f", func(*Env) (any, error) { return fakeFeeder{}, nil })
		reg := New(WithLogger(quietLogger()), WithTable(table))
		root := manifestFS(map[string]string{"f/manifest.yaml": "type: [feeder, storage]\n"})
		if err := reg.Discover(Root{Name: "t", FS: root}); err != nil {
			t.Fatal(err)
		}
		if _, err := reg.Materialize(context.Background(), "f"); !errors.Is(err, ErrSetup) {
			t.Errorf("expected setup error, got %v", err)
		}
	})

	t.Run("failing setup hook is a setup error", func(t *testing.T) {
		t.Parallel()

		table := NewTable()
		table.Register("s", func(env *Env) (any, error) {
			return &fakeEnricher{env: env, setupErr: errors.New("daemon failed")}, nil
		})
		reg := New(WithLogger(quietLogger()), WithTable(table))
		root := manifestFS(map[string]string{"s/manifest.yaml": "type: [enricher]\n"})
		if err := reg.Discover(Root{Name: "t", FS: root}); err != nil {
			t.Fatal(err)
		}
		_, err := reg.Materialize(context.Background(), "s")
		if !errors.Is(err, ErrSetup) || !strings.Contains(err.Error(), "daemon failed") {
			t.Errorf("unexpected error %v", err)
		}
	})

	t.Run("unknown module", func(t *testing.T) {
		t.Parallel()

		reg := New(WithLogger(quietLogger()))
		if _, err := reg.Materialize(context.Background(), "nope"); !errors.Is(err, ErrUnknownModule) {
			t.Errorf("expected ErrUnknownModule, got %v", err)
		}
	})
}
