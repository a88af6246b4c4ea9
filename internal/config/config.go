// Package config holds the operator's runtime configuration: which backup
// store backend to use and how the orphaned record sweeper behaves.
// Everything binds to flags; the ConfigMap namespace falls back to the
// POD_NAMESPACE downward-API environment variable so the default deployment
// needs no store flags at all.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dc-tec/node-label-preserver/internal/store"
	"github.com/dc-tec/node-label-preserver/internal/sweeper"
)

// DefaultSweepSchedule runs the sweeper nightly during low-churn hours.
const DefaultSweepSchedule = "0 3 * * *"

// DefaultSweepRetention keeps orphaned records for 30 days before reclaiming
// them.
const DefaultSweepRetention = 720 * time.Hour

// Config is the operator runtime configuration.
type Config struct {
	// StoreProvider selects the backup store backend: "configmap" or "s3".
	StoreProvider string
	// StoreNamespace is the namespace backup ConfigMaps are written to.
	// Defaults to the POD_NAMESPACE environment variable.
	StoreNamespace string

	// S3 backend settings, ignored unless StoreProvider is "s3". Credentials
	// come from the default AWS credential chain unless an access key pair
	// is set explicitly.
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3Prefix          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3UsePathStyle    bool

	// Sweeper settings.
	SweepEnabled   bool
	SweepSchedule  string
	SweepRetention time.Duration
}

// BindFlags registers the configuration flags on fs.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.StoreProvider, "store-provider", string(store.ProviderConfigMap),
		"Backup store backend. One of: configmap, s3.")
	fs.StringVar(&c.StoreNamespace, "store-namespace", os.Getenv("POD_NAMESPACE"),
		"Namespace backup ConfigMaps are written to. Defaults to POD_NAMESPACE.")

	fs.StringVar(&c.S3Bucket, "s3-bucket", "", "Bucket for the s3 store backend.")
	fs.StringVar(&c.S3Region, "s3-region", "", "AWS region for the s3 store backend.")
	fs.StringVar(&c.S3Endpoint, "s3-endpoint", "",
		"Custom endpoint URL for MinIO and other S3-compatible stores.")
	fs.StringVar(&c.S3Prefix, "s3-prefix", "", "Object key prefix for backup records.")
	fs.StringVar(&c.S3AccessKeyID, "s3-access-key-id", "",
		"Static access key for the s3 store backend. Empty uses the default credential chain.")
	fs.StringVar(&c.S3SecretAccessKey, "s3-secret-access-key", "",
		"Static secret key for the s3 store backend.")
	fs.BoolVar(&c.S3UsePathStyle, "s3-use-path-style", false,
		"Force path-style addressing, required for MinIO.")

	fs.BoolVar(&c.SweepEnabled, "sweep-enabled", true,
		"Periodically delete backup records whose node never came back.")
	fs.StringVar(&c.SweepSchedule, "sweep-schedule", DefaultSweepSchedule,
		"Cron schedule for the orphaned record sweeper.")
	fs.DurationVar(&c.SweepRetention, "sweep-retention", DefaultSweepRetention,
		"How long an orphaned backup record is kept before it is swept.")
}

// Validate checks the configuration for inconsistencies before the manager
// starts.
func (c *Config) Validate() error {
	switch store.ProviderType(c.StoreProvider) {
	case store.ProviderConfigMap, "":
		if c.StoreNamespace == "" {
			return fmt.Errorf("store-namespace is required for the configmap store (is POD_NAMESPACE set?)")
		}
	case store.ProviderS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("s3-bucket is required for the s3 store")
		}
		if (c.S3AccessKeyID == "") != (c.S3SecretAccessKey == "") {
			return fmt.Errorf("s3-access-key-id and s3-secret-access-key must be set together")
		}
	default:
		return fmt.Errorf("unknown store provider %q (valid providers: configmap, s3)", c.StoreProvider)
	}

	if c.SweepEnabled {
		if _, err := sweeper.ParseSchedule(c.SweepSchedule); err != nil {
			return err
		}
		if c.SweepRetention < 0 {
			return fmt.Errorf("sweep-retention must not be negative")
		}
	}

	return nil
}

// StoreConfig translates the flat flag values into the store configuration.
func (c *Config) StoreConfig() store.Config {
	cfg := store.Config{
		Provider:  store.ProviderType(c.StoreProvider),
		Namespace: c.StoreNamespace,
	}

	if cfg.Provider == store.ProviderS3 {
		cfg.S3 = &store.S3Options{
			Bucket:          c.S3Bucket,
			Region:          c.S3Region,
			Endpoint:        c.S3Endpoint,
			Prefix:          c.S3Prefix,
			AccessKeyID:     c.S3AccessKeyID,
			SecretAccessKey: c.S3SecretAccessKey,
			UsePathStyle:    c.S3UsePathStyle,
		}
	}

	return cfg
}
