package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/gosimple/slug"
	"github.com/spf13/viper"
)

// StaticOffering is one entry of the offerings file.
type StaticOffering struct {
	ID       string  `mapstructure:"id"`
	Label    string  `mapstructure:"label"`
	Amount   float64 `mapstructure:"amount"`
	Currency string  `mapstructure:"currency"`
	Active   *bool   `mapstructure:"active"`
}

// IsActive treats a missing flag as active.
func (o StaticOffering) IsActive() bool {
	return o.Active == nil || *o.Active
}

type CatalogFile struct {
	Offerings []StaticOffering `mapstructure:"offerings"`
}

func DefaultCatalog() CatalogFile {
	return CatalogFile{
		Offerings: []StaticOffering{
			{ID: "portfolio", Label: "Portfolio Website", Amount: 10000, Currency: "usd"},
			{ID: "security-audit", Label: "Security Audit", Amount: 1000, Currency: "usd"},
			{ID: "api-build", Label: "API Build / Integration", Amount: 5000, Currency: "usd"},
		},
	}
}

// CatalogHolder serves the latest valid offerings file.
type CatalogHolder struct {
	current atomic.Value // holds CatalogFile
}

// NewCatalogHolder loads offerings.yml from the usual locations, or the file
// named by CATALOG_FILE, and keeps it in sync with changes on disk.
func NewCatalogHolder() (*CatalogHolder, error) {
	return LoadCatalogHolder(strings.TrimSpace(os.Getenv("CATALOG_FILE")))
}

func LoadCatalogHolder(path string) (*CatalogHolder, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("offerings")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/blsuntech")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("BLSUNTECH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &CatalogHolder{}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		holder.current.Store(NormalizeCatalog(DefaultCatalog()))
		return holder, nil
	}

	cfg, err := decodeCatalog(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeCatalog(v)
		if err != nil {
			log.Printf("[catalog-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[catalog-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticCatalogHolder wraps a fixed catalog, mostly for tests.
func NewStaticCatalogHolder(cfg CatalogFile) (*CatalogHolder, error) {
	cfg = NormalizeCatalog(cfg)
	if err := validateCatalog(cfg); err != nil {
		return nil, err
	}
	holder := &CatalogHolder{}
	holder.current.Store(cfg)
	return holder, nil
}

func (h *CatalogHolder) Get() CatalogFile {
	return h.current.Load().(CatalogFile)
}

func decodeCatalog(v *viper.Viper) (CatalogFile, error) {
	var cfg CatalogFile
	if err := v.UnmarshalKey("catalog", &cfg); err != nil {
		return CatalogFile{}, err
	}
	cfg = NormalizeCatalog(cfg)
	if err := validateCatalog(cfg); err != nil {
		return CatalogFile{}, err
	}
	return cfg, nil
}

func NormalizeCatalog(cfg CatalogFile) CatalogFile {
	out := CatalogFile{Offerings: make([]StaticOffering, 0, len(cfg.Offerings))}
	for _, item := range cfg.Offerings {
		item.Label = strings.TrimSpace(item.Label)
		item.ID = strings.TrimSpace(item.ID)
		if item.ID == "" {
			item.ID = slug.Make(item.Label)
		}
		item.Currency = strings.ToLower(strings.TrimSpace(item.Currency))
		if item.Currency == "" {
			item.Currency = "usd"
		}
		out.Offerings = append(out.Offerings, item)
	}
	return out
}

func validateCatalog(cfg CatalogFile) error {
	if len(cfg.Offerings) == 0 {
		return errors.New("catalog.offerings cannot be empty")
	}
	seen := make(map[string]struct{}, len(cfg.Offerings))
	for _, item := range cfg.Offerings {
		if item.ID == "" || item.Label == "" {
			return errors.New("catalog.offerings entries need a label")
		}
		if strings.HasPrefix(item.ID, "price_") {
			return fmt.Errorf("catalog offering %q uses a reserved price_ prefix", item.ID)
		}
		if item.Amount <= 0 {
			return fmt.Errorf("catalog offering %q must have a positive amount", item.ID)
		}
		if len(item.Currency) != 3 {
			return fmt.Errorf("catalog offering %q has invalid currency %q", item.ID, item.Currency)
		}
		if _, ok := seen[item.ID]; ok {
			return fmt.Errorf("duplicate catalog offering %q", item.ID)
		}
		seen[item.ID] = struct{}{}
	}
	return nil
}
