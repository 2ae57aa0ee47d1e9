// Package config loads the settings of a star-schema run. Values are applied
// in order: defaults, the TOML file, a .env file, STARBATCH_* environment
// variables and finally command line flags.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/chararch/starbatch"
	"github.com/chararch/starbatch/file"
	"github.com/chararch/starbatch/store"
	"github.com/chararch/starbatch/warehouse"
)

// EnvPrefix prefixes every environment variable the config reads.
const EnvPrefix = "STARBATCH"

const dateLayout = "2006-01-02"

type Config struct {
	Store   Store   `toml:"store"`
	Loader  Loader  `toml:"loader"`
	Source  Source  `toml:"source"`
	Dates   Dates   `toml:"dates"`
	Schema  Schema  `toml:"schema"`
	History History `toml:"history"`
	Metrics Metrics `toml:"metrics"`
}

type Store struct {
	Kind     string            `toml:"kind"`
	Host     string            `toml:"host"`
	Port     int               `toml:"port"`
	User     string            `toml:"user"`
	Password string            `toml:"password"`
	Database string            `toml:"database"`
	Params   map[string]string `toml:"params"`
}

type Loader struct {
	MaxWorkers int `toml:"max_workers"`
	// BatchSize is keyed by table name, e.g. Sales_Fact.
	BatchSize map[string]int `toml:"batch_size"`
}

type Source struct {
	Storage     string `toml:"storage"`
	Root        string `toml:"root"`
	Customer    string `toml:"customer"`
	Product     string `toml:"product"`
	Transaction string `toml:"transaction"`
	Type        string `toml:"type"`
	Checksum    string `toml:"checksum"`
	FTP         FTP    `toml:"ftp"`
	S3          S3     `toml:"s3"`
}

type FTP struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Timeout  string `toml:"timeout"`
}

type S3 struct {
	Bucket   string `toml:"bucket"`
	Prefix   string `toml:"prefix"`
	Region   string `toml:"region"`
	Endpoint string `toml:"endpoint"`
}

// Dates bounds the generated date dimension, both ends inclusive, as yyyy-mm-dd.
type Dates struct {
	Start string `toml:"start"`
	End   string `toml:"end"`
}

type Schema struct {
	CreateTables bool `toml:"create_tables"`
}

type History struct {
	Enabled bool `toml:"enabled"`
}

type Metrics struct {
	Addr string `toml:"addr"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	sizes := make(map[string]int, len(warehouse.AllTables))
	for _, t := range warehouse.AllTables {
		sizes[t.String()] = t.DefaultBatchSize()
	}
	return &Config{
		Store: Store{
			Kind:     "mysql",
			Host:     "localhost",
			Port:     3306,
			User:     "root",
			Database: "metro_dw",
		},
		Loader: Loader{
			MaxWorkers: starbatch.DefaultMaxWorkers,
			BatchSize:  sizes,
		},
		Source: Source{
			Storage:     file.LocalFileStorage,
			Root:        ".",
			Customer:    warehouse.DefaultSources["customer"],
			Product:     warehouse.DefaultSources["product"],
			Transaction: warehouse.DefaultSources["transaction"],
			Type:        file.CSV,
			FTP:         FTP{Port: 21, Timeout: "10s"},
		},
		Dates: Dates{
			Start: warehouse.DefaultDateStart.Format(dateLayout),
			End:   warehouse.DefaultDateEnd.Format(dateLayout),
		},
	}
}

// Load builds the configuration from defaults, the TOML file at path (skipped
// when empty), the .env file at envFile (skipped when missing) and the
// environment. Flags are applied separately with ApplyFlags.
func Load(path, envFile string) (*Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %v", path)
		}
		if err := c.Decode(data); err != nil {
			return nil, errors.Wrapf(err, "parse config %v", path)
		}
	}
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			// variables already set in the process win over the file
			if err := godotenv.Load(envFile); err != nil {
				return nil, errors.Wrapf(err, "load env file %v", envFile)
			}
		}
	}
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return c, nil
}

// Decode merges TOML data over c. Keys absent from data keep their values;
// unknown keys are an error.
func (c *Config) Decode(data []byte) error {
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return err
	}
	byKey := make(map[string]binding, len(bindings))
	for _, b := range bindings {
		byKey[b.key] = b
	}
	for _, path := range leaves(tree, nil) {
		v := fmt.Sprint(tree.GetPath(path))
		switch {
		case len(path) == 3 && path[0] == "store" && path[1] == "params":
			if c.Store.Params == nil {
				c.Store.Params = map[string]string{}
			}
			c.Store.Params[path[2]] = v
		case len(path) == 3 && path[0] == "loader" && path[1] == "batch_size":
			n, err := strconv.Atoi(v)
			if err != nil {
				return errors.Wrapf(err, "loader.batch_size.%v", path[2])
			}
			if c.Loader.BatchSize == nil {
				c.Loader.BatchSize = map[string]int{}
			}
			c.Loader.BatchSize[path[2]] = n
		default:
			key := strings.Join(path, ".")
			b, ok := byKey[key]
			if !ok {
				return fmt.Errorf("unknown option %v", key)
			}
			if err := b.set(c, v); err != nil {
				return errors.Wrapf(err, "invalid %v", key)
			}
		}
	}
	return nil
}

func leaves(t *toml.Tree, prefix []string) [][]string {
	var out [][]string
	for _, k := range t.Keys() {
		path := append(append([]string{}, prefix...), k)
		if sub, ok := t.GetPath([]string{k}).(*toml.Tree); ok {
			out = append(out, leaves(sub, path)...)
			continue
		}
		out = append(out, path)
	}
	return out
}

type binding struct {
	key   string
	usage string
	get   func(c *Config) interface{}
	set   func(c *Config, v string) error
}

// flag name of a binding: loader.max_workers -> loader-max-workers
func (b binding) flag() string {
	return strings.NewReplacer(".", "-", "_", "-").Replace(b.key)
}

// env name of a binding: store.kind -> STARBATCH_STORE_KIND
func (b binding) env() string {
	return EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(b.key))
}

func str(p func(c *Config) *string) (func(c *Config) interface{}, func(c *Config, v string) error) {
	return func(c *Config) interface{} { return *p(c) },
		func(c *Config, v string) error {
			*p(c) = v
			return nil
		}
}

func num(p func(c *Config) *int) (func(c *Config) interface{}, func(c *Config, v string) error) {
	return func(c *Config) interface{} { return *p(c) },
		func(c *Config, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return err
			}
			*p(c) = n
			return nil
		}
}

func boolean(p func(c *Config) *bool) (func(c *Config) interface{}, func(c *Config, v string) error) {
	return func(c *Config) interface{} { return *p(c) },
		func(c *Config, v string) error {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return err
			}
			*p(c) = b
			return nil
		}
}

var bindings = func() []binding {
	var bs []binding
	add := func(key, usage string, get func(c *Config) interface{}, set func(c *Config, v string) error) {
		bs = append(bs, binding{key: key, usage: usage, get: get, set: set})
	}
	g, s := str(func(c *Config) *string { return &c.Store.Kind })
	add("store.kind", "store backend: "+strings.Join(knownStores, "|"), g, s)
	g, s = str(func(c *Config) *string { return &c.Store.Host })
	add("store.host", "store host", g, s)
	g, s = num(func(c *Config) *int { return &c.Store.Port })
	add("store.port", "store port", g, s)
	g, s = str(func(c *Config) *string { return &c.Store.User })
	add("store.user", "store user", g, s)
	g, s = str(func(c *Config) *string { return &c.Store.Password })
	add("store.password", "store password", g, s)
	g, s = str(func(c *Config) *string { return &c.Store.Database })
	add("store.database", "database name, or the file path for sqlite", g, s)

	g, s = num(func(c *Config) *int { return &c.Loader.MaxWorkers })
	add("loader.max_workers", "concurrent batches per table", g, s)
	add("loader.batch_size", "per-table batch sizes, e.g. Sales_Fact=2000,Date_Dim=100",
		func(c *Config) interface{} { return "" },
		func(c *Config, v string) error {
			sizes, err := parseSizes(v)
			if err != nil {
				return err
			}
			if c.Loader.BatchSize == nil {
				c.Loader.BatchSize = map[string]int{}
			}
			for k, n := range sizes {
				c.Loader.BatchSize[k] = n
			}
			return nil
		})

	g, s = str(func(c *Config) *string { return &c.Source.Storage })
	add("source.storage", "extract storage: local|ftp|s3", g, s)
	g, s = str(func(c *Config) *string { return &c.Source.Root })
	add("source.root", "directory of the extracts for local storage", g, s)
	g, s = str(func(c *Config) *string { return &c.Source.Customer })
	add("source.customer", "customer extract path, may contain {param} placeholders", g, s)
	g, s = str(func(c *Config) *string { return &c.Source.Product })
	add("source.product", "product extract path", g, s)
	g, s = str(func(c *Config) *string { return &c.Source.Transaction })
	add("source.transaction", "transaction extract path", g, s)
	g, s = str(func(c *Config) *string { return &c.Source.Type })
	add("source.type", "extract format: csv|tsv", g, s)
	g, s = str(func(c *Config) *string { return &c.Source.Checksum })
	add("source.checksum", "checksum verified before reading: OK|MD5|SHA1|SHA256|SHA512", g, s)
	g, s = str(func(c *Config) *string { return &c.Source.FTP.Host })
	add("source.ftp.host", "ftp host", g, s)
	g, s = num(func(c *Config) *int { return &c.Source.FTP.Port })
	add("source.ftp.port", "ftp port", g, s)
	g, s = str(func(c *Config) *string { return &c.Source.FTP.User })
	add("source.ftp.user", "ftp user", g, s)
	g, s = str(func(c *Config) *string { return &c.Source.FTP.Password })
	add("source.ftp.password", "ftp password", g, s)
	g, s = str(func(c *Config) *string { return &c.Source.FTP.Timeout })
	add("source.ftp.timeout", "ftp connect timeout", g, s)
	g, s = str(func(c *Config) *string { return &c.Source.S3.Bucket })
	add("source.s3.bucket", "s3 bucket", g, s)
	g, s = str(func(c *Config) *string { return &c.Source.S3.Prefix })
	add("source.s3.prefix", "s3 key prefix", g, s)
	g, s = str(func(c *Config) *string { return &c.Source.S3.Region })
	add("source.s3.region", "s3 region", g, s)
	g, s = str(func(c *Config) *string { return &c.Source.S3.Endpoint })
	add("source.s3.endpoint", "s3 endpoint for compatible services", g, s)

	g, s = str(func(c *Config) *string { return &c.Dates.Start })
	add("dates.start", "first day of the date dimension", g, s)
	g, s = str(func(c *Config) *string { return &c.Dates.End })
	add("dates.end", "last day of the date dimension", g, s)
	g, s = boolean(func(c *Config) *bool { return &c.Schema.CreateTables })
	add("schema.create_tables", "create missing tables before loading", g, s)
	g, s = boolean(func(c *Config) *bool { return &c.History.Enabled })
	add("history.enabled", "record runs in the store", g, s)
	g, s = str(func(c *Config) *string { return &c.Metrics.Addr })
	add("metrics.addr", "serve prometheus metrics on this address", g, s)
	return bs
}()

// ApplyEnv overrides c with the STARBATCH_* variables lookup finds.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, b := range bindings {
		v, ok := lookup(b.env())
		if !ok || v == "" {
			continue
		}
		if err := b.set(c, v); err != nil {
			return errors.Wrapf(err, "invalid %v", b.env())
		}
	}
	return nil
}

// AddFlags registers one flag per setting on fs, defaulting to c's values.
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	for _, b := range bindings {
		switch v := b.get(c).(type) {
		case int:
			fs.Int(b.flag(), v, b.usage)
		case bool:
			fs.Bool(b.flag(), v, b.usage)
		default:
			fs.String(b.flag(), fmt.Sprint(v), b.usage)
		}
	}
}

// ApplyFlags overrides c with the flags set explicitly on fs.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	for _, b := range bindings {
		f := fs.Lookup(b.flag())
		if f == nil || !f.Changed {
			continue
		}
		if err := b.set(c, f.Value.String()); err != nil {
			return errors.Wrapf(err, "invalid --%v", b.flag())
		}
	}
	return nil
}

func parseSizes(v string) (map[string]int, error) {
	sizes := map[string]int{}
	for _, kv := range strings.Split(v, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		idx := strings.Index(kv, "=")
		if idx <= 0 {
			return nil, fmt.Errorf("expected table=size, got %q", kv)
		}
		n, err := strconv.Atoi(strings.TrimSpace(kv[idx+1:]))
		if err != nil {
			return nil, fmt.Errorf("batch size of %v: %v", kv[:idx], err)
		}
		sizes[strings.TrimSpace(kv[:idx])] = n
	}
	return sizes, nil
}

// Redacted is a copy of c with secrets masked, for display.
func (c *Config) Redacted() *Config {
	r := *c
	if r.Store.Password != "" {
		r.Store.Password = "******"
	}
	if r.Source.FTP.Password != "" {
		r.Source.FTP.Password = "******"
	}
	r.Store.Params = make(map[string]string, len(c.Store.Params))
	for k, v := range c.Store.Params {
		r.Store.Params[k] = v
	}
	return &r
}

// String renders the redacted config as TOML.
func (c *Config) String() string {
	data, err := toml.Marshal(c.Redacted())
	if err != nil {
		return err.Error()
	}
	return string(data)
}

// Backend is the store.Config the store settings describe.
func (s Store) Backend() store.Config {
	return store.Config{
		Kind:     s.Kind,
		Host:     s.Host,
		Port:     s.Port,
		User:     s.User,
		Password: s.Password,
		Database: s.Database,
		Params:   s.Params,
	}
}

// OpenStore opens the configured store. The backend must be linked in, see store/all.
func (c *Config) OpenStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, c.Store.Backend())
}

// FileStorage builds the storage the extracts are read from.
func (c *Config) FileStorage(ctx context.Context) (file.FileStorage, error) {
	src := c.Source
	switch strings.ToLower(src.Storage) {
	case "", file.LocalFileStorage:
		return &file.LocalFileSystem{Root: src.Root}, nil
	case file.FTPFileStorage:
		timeout, err := time.ParseDuration(src.FTP.Timeout)
		if err != nil && src.FTP.Timeout != "" {
			return nil, errors.Wrapf(err, "invalid source.ftp.timeout")
		}
		return &file.FTPFileSystem{
			Host:        src.FTP.Host,
			Port:        src.FTP.Port,
			User:        src.FTP.User,
			Password:    src.FTP.Password,
			ConnTimeout: timeout,
		}, nil
	case file.S3FileStorage:
		return file.NewS3FileSystem(ctx, src.S3.Bucket, src.S3.Prefix, src.S3.Region, src.S3.Endpoint)
	}
	return nil, fmt.Errorf("unknown source storage: %v", src.Storage)
}

// Extractor reads the three configured extracts from storage.
func (c *Config) Extractor(storage file.FileStorage) *warehouse.CSVExtractor {
	return &warehouse.CSVExtractor{
		Storage:     storage,
		Customer:    starbatch.FilePath{NamePattern: c.Source.Customer},
		Product:     starbatch.FilePath{NamePattern: c.Source.Product},
		Transaction: starbatch.FilePath{NamePattern: c.Source.Transaction},
		Type:        c.Source.Type,
		Checksum:    c.Source.Checksum,
	}
}

// Options are the pipeline options c describes over s and ex.
func (c *Config) Options(s store.Store, ex warehouse.Extractor) (warehouse.Options, error) {
	start, end, err := c.Dates.Range()
	if err != nil {
		return warehouse.Options{}, err
	}
	sizes := make(map[warehouse.Table]int, len(c.Loader.BatchSize))
	for name, n := range c.Loader.BatchSize {
		t, err := warehouse.ParseTable(name)
		if err != nil {
			return warehouse.Options{}, errors.Wrap(err, "loader.batch_size")
		}
		sizes[t] = n
	}
	return warehouse.Options{
		Store:        s,
		Extractor:    ex,
		MaxWorkers:   c.Loader.MaxWorkers,
		BatchSizes:   sizes,
		DateStart:    start,
		DateEnd:      end,
		CreateTables: c.Schema.CreateTables,
	}, nil
}

// Range parses the date dimension bounds.
func (d Dates) Range() (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, strings.TrimSpace(d.Start))
	if err != nil {
		return time.Time{}, time.Time{}, errors.Wrap(err, "dates.start")
	}
	end, err := time.Parse(dateLayout, strings.TrimSpace(d.End))
	if err != nil {
		return time.Time{}, time.Time{}, errors.Wrap(err, "dates.end")
	}
	return start, end, nil
}

var knownStores = []string{"mssql", "mysql", "postgres", "sqlite"}
