// Package dataset fetches the input archive into the download directory
// when it holds no CSV files yet.
package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"

	"github.com/ajitpratap0/polyload/pkg/errors"
	"github.com/ajitpratap0/polyload/pkg/logger"
	"github.com/ajitpratap0/polyload/pkg/source"
)

// DefaultBaseURL is the dataset download endpoint of the Kaggle API.
const DefaultBaseURL = "https://www.kaggle.com/api/v1/datasets/download/"

// Credentials authenticate against the Kaggle API.
type Credentials struct {
	Username string `json:"username"`
	Key      string `json:"key"`
}

// CredentialsFromEnv reads KAGGLE_USERNAME and KAGGLE_KEY, falling back to
// ~/.kaggle/kaggle.json.
func CredentialsFromEnv() (Credentials, error) {
	c := Credentials{Username: os.Getenv("KAGGLE_USERNAME"), Key: os.Getenv("KAGGLE_KEY")}
	if c.Username != "" && c.Key != "" {
		return c, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return c, errors.New(errors.ErrorTypeConfig, "KAGGLE_USERNAME and KAGGLE_KEY are not set")
	}
	data, err := os.ReadFile(filepath.Join(home, ".kaggle", "kaggle.json")) //nolint:gosec // G304: fixed location
	if err != nil {
		return c, errors.New(errors.ErrorTypeConfig, "KAGGLE_USERNAME and KAGGLE_KEY are not set and ~/.kaggle/kaggle.json is missing")
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, errors.Wrap(err, errors.ErrorTypeConfig, "invalid kaggle.json")
	}
	return c, nil
}

// Downloader fetches and unpacks dataset archives.
type Downloader struct {
	client  *http.Client
	baseURL string
	creds   Credentials
	logger  *zap.Logger
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithBaseURL overrides the download endpoint. The dataset reference is
// appended to it.
func WithBaseURL(u string) Option {
	return func(d *Downloader) {
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		d.baseURL = u
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Downloader) {
		d.client = c
	}
}

// NewDownloader creates a downloader authenticating with creds.
func NewDownloader(creds Credentials, opts ...Option) *Downloader {
	d := &Downloader{
		client:  &http.Client{Timeout: 10 * time.Minute},
		baseURL: DefaultBaseURL,
		creds:   creds,
		logger:  logger.Get().With(zap.String("component", "dataset")),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HasCSV reports whether dir already holds at least one CSV file.
func HasCSV(dir string) (bool, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return false, nil
	}
	files, err := source.Discover(dir, "*.csv")
	if err != nil {
		return false, err
	}
	return len(files) > 0, nil
}

// Ensure downloads ref into dir unless dir already has CSV files. It
// reports whether a download happened.
func (d *Downloader) Ensure(ctx context.Context, dir, ref string) (bool, error) {
	ok, err := HasCSV(dir)
	if err != nil {
		return false, err
	}
	if ok {
		d.logger.Info("dataset already downloaded", zap.String("dir", dir))
		return false, nil
	}
	if _, err := d.Download(ctx, dir, ref); err != nil {
		return false, err
	}
	return true, nil
}

// Download fetches ref and unpacks it into dir, returning the extracted paths.
func (d *Downloader) Download(ctx context.Context, dir, ref string) ([]string, error) {
	if ref == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "dataset reference is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create download directory")
	}

	url := d.baseURL + strings.TrimPrefix(ref, "/")
	d.logger.Info("downloading dataset", zap.String("ref", ref), zap.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid dataset url")
	}
	if d.creds.Username != "" {
		req.SetBasicAuth(d.creds.Username, d.creds.Key)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "dataset download failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrorTypeConnection, "dataset download failed: %s", resp.Status).
			WithDetail("url", url)
	}

	tmp, err := os.CreateTemp(dir, ".download-*.zip")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create temp file")
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "dataset download interrupted")
	}
	d.logger.Info("download complete", zap.Int64("bytes", n))

	files, err := Extract(tmp.Name(), dir)
	if err != nil {
		return nil, err
	}
	d.logger.Info("dataset extracted", zap.Int("files", len(files)), zap.String("dir", dir))
	return files, nil
}

// Extract unpacks the zip archive at archive into dir. Entries that would
// land outside dir are rejected.
func Extract(archive, dir string) ([]string, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open archive")
	}
	defer zr.Close()

	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "invalid download directory")
	}

	var files []string
	for _, f := range zr.File {
		dest := filepath.Join(root, f.Name) //nolint:gosec // G305: checked below
		if dest != root && !strings.HasPrefix(dest, root+string(os.PathSeparator)) {
			return files, errors.Newf(errors.ErrorTypeFile, "archive entry %q escapes %s", f.Name, dir)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o750); err != nil {
				return files, errors.Wrap(err, errors.ErrorTypeFile, "failed to create directory")
			}
			continue
		}
		if err := extractFile(f, dest); err != nil {
			return files, err
		}
		files = append(files, dest)
	}
	return files, nil
}

func extractFile(f *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create directory")
	}
	rc, err := f.Open()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, fmt.Sprintf("failed to open %s", f.Name))
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600) //nolint:gosec // G304: path checked by caller
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, fmt.Sprintf("failed to create %s", dest))
	}
	if _, err := io.Copy(out, rc); err != nil { //nolint:gosec // G110: trusted dataset archive
		_ = out.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, fmt.Sprintf("failed to write %s", dest))
	}
	return out.Close()
}
