// Package modules bundles the built-in modules: their manifests, embedded
// as a discovery root, and their factories.
package modules

import (
	"embed"
	"io/fs"

	"github.com/nao1215/autoarchiver/internal/module"
	clifeeder "github.com/nao1215/autoarchiver/internal/modules/cli_feeder"
	consoledb "github.com/nao1215/autoarchiver/internal/modules/console_db"
	csvdb "github.com/nao1215/autoarchiver/internal/modules/csv_db"
	csvfeeder "github.com/nao1215/autoarchiver/internal/modules/csv_feeder"
	exifenricher "github.com/nao1215/autoarchiver/internal/modules/exif_enricher"
	hashenricher "github.com/nao1215/autoarchiver/internal/modules/hash_enricher"
	htmlformatter "github.com/nao1215/autoarchiver/internal/modules/html_formatter"
	jsonformatter "github.com/nao1215/autoarchiver/internal/modules/json_formatter"
	localstorage "github.com/nao1215/autoarchiver/internal/modules/local_storage"
	markdownformatter "github.com/nao1215/autoarchiver/internal/modules/markdown_formatter"
	metaenricher "github.com/nao1215/autoarchiver/internal/modules/meta_enricher"
	muteformatter "github.com/nao1215/autoarchiver/internal/modules/mute_formatter"
	pageextractor "github.com/nao1215/autoarchiver/internal/modules/page_extractor"
	sqlitedb "github.com/nao1215/autoarchiver/internal/modules/sqlite_db"
	sslenricher "github.com/nao1215/autoarchiver/internal/modules/ssl_enricher"
	torextractor "github.com/nao1215/autoarchiver/internal/modules/tor_extractor"
	waybackenricher "github.com/nao1215/autoarchiver/internal/modules/wayback_enricher"
)

//go:embed */manifest.yaml
var manifests embed.FS

// RootName identifies the built-in root in messages.
const RootName = "builtin"

// factories maps entry points to constructors. Entry points default to the
// module directory name.
var factories = map[string]module.Factory{
	"cli_feeder":         clifeeder.New,
	"csv_feeder":         csvfeeder.New,
	"page_extractor":     pageextractor.New,
	"tor_extractor":      torextractor.New,
	"wayback_enricher":   waybackenricher.New,
	"hash_enricher":      hashenricher.New,
	"exif_enricher":      exifenricher.New,
	"ssl_enricher":       sslenricher.New,
	"meta_enricher":      metaenricher.New,
	"local_storage":      localstorage.New,
	"console_db":         consoledb.New,
	"csv_db":             csvdb.New,
	"sqlite_db":          sqlitedb.New,
	"html_formatter":     htmlformatter.New,
	"markdown_formatter": markdownformatter.New,
	"json_formatter":     jsonformatter.New,
	"mute_formatter":     muteformatter.New,
}

// FS returns the manifests of the built-in modules, one directory per module.
func FS() fs.FS { return manifests }

// Root returns the built-in discovery root.
func Root() module.Root {
	return module.Root{Name: RootName, FS: manifests}
}

// Table returns an implementation table holding every built-in factory.
func Table() *module.Table {
	t := module.NewTable()
	Register(t)
	return t
}

// Register adds the built-in factories to t.
func Register(t *module.Table) {
	for name, f := range factories {
		t.Register(name, f)
	}
}
