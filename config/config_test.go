package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bmizerany/assert"
	"github.com/spf13/pflag"

	"github.com/chararch/starbatch"
	"github.com/chararch/starbatch/file"
	"github.com/chararch/starbatch/warehouse"
)

const sample = `
[store]
kind = "sqlite"
database = "/var/lib/starbatch/dw.db"

[store.params]
_pragma = "busy_timeout(5000)"

[loader]
max_workers = 8

[loader.batch_size]
Sales_Fact = 2000

[source]
customer = "{date,yyyyMMdd}/customer.csv"
checksum = "MD5"

[dates]
start = "2019-01-01"
end = "2019-12-31"

[schema]
create_tables = true
`

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, 0, len(Errors(c.Validate())))
	assert.Equal(t, 365, c.Loader.BatchSize["Date_Dim"])
	assert.Equal(t, 50, c.Loader.BatchSize["Store_Dim"])
	assert.Equal(t, "transactional_data.csv", c.Source.Transaction)
}

func TestDecode(t *testing.T) {
	c := Default()
	assert.Equal(t, nil, c.Decode([]byte(sample)))
	assert.Equal(t, "sqlite", c.Store.Kind)
	assert.Equal(t, "/var/lib/starbatch/dw.db", c.Store.Database)
	assert.Equal(t, "busy_timeout(5000)", c.Store.Params["_pragma"])
	assert.Equal(t, 8, c.Loader.MaxWorkers)
	assert.Equal(t, 2000, c.Loader.BatchSize["Sales_Fact"])
	// untouched keys keep their defaults
	assert.Equal(t, 365, c.Loader.BatchSize["Date_Dim"])
	assert.Equal(t, "product_master_data.csv", c.Source.Product)
	assert.Equal(t, "{date,yyyyMMdd}/customer.csv", c.Source.Customer)
	assert.T(t, c.Schema.CreateTables)
	assert.Equal(t, 0, len(c.Validate()))

	err := Default().Decode([]byte("[store]\nkind = \"sqlite\"\nflavour = \"x\"\n"))
	assert.NotEqual(t, nil, err)
	assert.T(t, strings.Contains(err.Error(), "store.flavour"))

	err = Default().Decode([]byte("[loader]\nmax_workers = \"many\"\n"))
	assert.NotEqual(t, nil, err)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "starbatch.toml")
	assert.Equal(t, nil, os.WriteFile(path, []byte(sample), 0o644))
	envFile := filepath.Join(dir, ".env")
	assert.Equal(t, nil, os.WriteFile(envFile, []byte("STARBATCH_LOADER_MAX_WORKERS=6\nSTARBATCH_STORE_HOST=from-dotenv\nSTARBATCH_METRICS_ADDR=:9102\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("STARBATCH_LOADER_MAX_WORKERS")
		os.Unsetenv("STARBATCH_METRICS_ADDR")
	})
	t.Setenv("STARBATCH_STORE_HOST", "db.internal")
	t.Setenv("STARBATCH_LOADER_BATCH_SIZE", "Date_Dim=100, Customer_Dim=250")

	c, err := Load(path, envFile)
	assert.Equal(t, nil, err)
	// .env over the file
	assert.Equal(t, 6, c.Loader.MaxWorkers)
	assert.Equal(t, ":9102", c.Metrics.Addr)
	// the process environment over .env
	assert.Equal(t, "db.internal", c.Store.Host)
	assert.Equal(t, 100, c.Loader.BatchSize["Date_Dim"])
	assert.Equal(t, 250, c.Loader.BatchSize["Customer_Dim"])
	assert.Equal(t, 2000, c.Loader.BatchSize["Sales_Fact"])

	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	Default().AddFlags(fs)
	assert.Equal(t, nil, fs.Parse([]string{"--loader-max-workers", "3", "--schema-create-tables=false", "--store-database", "other.db"}))
	assert.Equal(t, nil, c.ApplyFlags(fs))
	assert.Equal(t, 3, c.Loader.MaxWorkers)
	assert.T(t, !c.Schema.CreateTables)
	assert.Equal(t, "other.db", c.Store.Database)
	// flags left unset do not reset loaded values
	assert.Equal(t, "sqlite", c.Store.Kind)

	_, err = Load(filepath.Join(dir, "missing.toml"), "")
	assert.NotEqual(t, nil, err)
}

func TestApplyEnv_Invalid(t *testing.T) {
	env := map[string]string{"STARBATCH_STORE_PORT": "three thousand"}
	err := Default().ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	assert.NotEqual(t, nil, err)
	assert.T(t, strings.Contains(err.Error(), "STARBATCH_STORE_PORT"))
}

func TestValidate(t *testing.T) {
	c := Default()
	c.Store.Kind = "oracle"
	c.Loader.MaxWorkers = 0
	c.Loader.BatchSize["Orders"] = 10
	c.Loader.BatchSize["Date_Dim"] = -1
	c.Source.Storage = file.S3FileStorage
	c.Source.Checksum = "CRC32"
	c.Dates.Start, c.Dates.End = "2020-01-01", "2019-01-01"

	paths := map[string]IssueSeverity{}
	for _, iss := range c.Validate() {
		paths[iss.Path] = iss.Severity
	}
	for _, p := range []string{"store.kind", "loader.max_workers", "loader.batch_size.Orders",
		"loader.batch_size.Date_Dim", "source.s3.bucket", "source.checksum", "dates.end"} {
		assert.Equal(t, SeverityError, paths[p], p)
	}

	c = Default()
	c.Store.Password = "pw"
	c.Dates.Start = "01/02/2019"
	issues := c.Validate()
	assert.Equal(t, 1, len(issues))
	assert.Equal(t, "dates.start", issues[0].Path)
}

func TestRedacted(t *testing.T) {
	c := Default()
	c.Store.Password = "s3cret"
	c.Source.FTP.Password = "hunter2"
	r := c.Redacted()
	assert.Equal(t, "s3cret", c.Store.Password)
	assert.NotEqual(t, "s3cret", r.Store.Password)
	out := c.String()
	assert.T(t, !strings.Contains(out, "s3cret"), out)
	assert.T(t, !strings.Contains(out, "hunter2"), out)
	assert.T(t, strings.Contains(out, "metro_dw"), out)
}

func TestOptions(t *testing.T) {
	c := Default()
	c.Loader.BatchSize = map[string]int{"sales_fact": 10, "Date_Dim": 30}
	ex := c.Extractor(&file.LocalFileSystem{Root: t.TempDir()})
	assert.Equal(t, "customer_master_data.csv", ex.Customer.NamePattern)

	opts, err := c.Options(nil, ex)
	assert.Equal(t, nil, err)
	assert.Equal(t, 10, opts.BatchSizes[warehouse.SalesFact])
	assert.Equal(t, 30, opts.BatchSizes[warehouse.DateDim])
	assert.Equal(t, 2, len(opts.BatchSizes))
	assert.Equal(t, time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC), opts.DateStart)
	assert.Equal(t, starbatch.DefaultMaxWorkers, opts.MaxWorkers)

	c.Dates.End = "soon"
	_, err = c.Options(nil, ex)
	assert.NotEqual(t, nil, err)
}

func TestFileStorage(t *testing.T) {
	ctx := context.Background()
	c := Default()
	fs, err := c.FileStorage(ctx)
	assert.Equal(t, nil, err)
	_, ok := fs.(*file.LocalFileSystem)
	assert.T(t, ok)

	c.Source.Storage = file.FTPFileStorage
	c.Source.FTP.Host = "ftp.example.com"
	fs, err = c.FileStorage(ctx)
	assert.Equal(t, nil, err)
	ftp := fs.(*file.FTPFileSystem)
	assert.Equal(t, 10*time.Second, ftp.ConnTimeout)

	c.Source.Storage = "gopher"
	_, err = c.FileStorage(ctx)
	assert.NotEqual(t, nil, err)
}
