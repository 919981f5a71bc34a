package corpus

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"

	"github.com/turtacn/DataMention-Intelligence/internal/config"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// ResourceKind is the type of a downloadable corpus resource.
type ResourceKind string

const (
	// ResourcePDF is a publication full text.
	ResourcePDF ResourceKind = "pdf"
	// ResourceHTML is a dataset landing page.
	ResourceHTML ResourceKind = "html"
)

// pdfMarkerWindow is how many bytes at each end of a file are searched for the PDF
// header and trailer.
const pdfMarkerWindow = 1024

// ValidatePDF checks that r holds a complete PDF: a %PDF- header within the
// first kilobyte and an %%EOF marker within the last.
func ValidatePDF(r io.ReadSeeker) error {
	head := make([]byte, pdfMarkerWindow)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return errors.Wrap(err, errors.ErrCodeInvalidPDF, "read pdf header")
	}
	if !bytes.Contains(head[:n], []byte("%PDF-")) {
		return errors.New(errors.ErrCodeInvalidPDF, "missing %PDF- header")
	}

	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidPDF, "seek pdf trailer")
	}
	off := size - pdfMarkerWindow
	if off < 0 {
		off = 0
	}
	if _, err := r.Seek(off, io.SeekStart); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidPDF, "seek pdf trailer")
	}
	tail, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidPDF, "read pdf trailer")
	}
	if !bytes.Contains(tail, []byte("%%EOF")) {
		return errors.New(errors.ErrCodeInvalidPDF, "missing %%EOF trailer")
	}
	return nil
}

// IsValidPDFFile reports whether the file at path passes ValidatePDF.
func IsValidPDFFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	return ValidatePDF(f) == nil
}

// Fetcher downloads publication PDFs and dataset pages. Failed requests are
// retried with exponential backoff; client errors other than 429 are not.
type Fetcher struct {
	client     *resty.Client
	attempts   int
	backoff    time.Duration
	maxBackoff time.Duration
	delay      time.Duration
	logger     logging.Logger
}

// FetcherOption customises a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient routes requests through hc.
func WithHTTPClient(hc *http.Client) FetcherOption {
	return func(f *Fetcher) {
		ua := f.client.Header.Get("User-Agent")
		f.client = resty.NewWithClient(hc).SetHeader("User-Agent", ua)
	}
}

// WithRetry overrides the attempt count and backoff bounds.
func WithRetry(attempts int, initial, max time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.attempts = attempts
		f.backoff = initial
		f.maxBackoff = max
	}
}

// WithDelay sets the pause between two downloads of DownloadResources.
func WithDelay(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.delay = d }
}

// NewFetcher builds a Fetcher from the download section of the config.
func NewFetcher(cfg config.DownloadConfig, logger logging.Logger, opts ...FetcherOption) *Fetcher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	client := resty.New().SetTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	f := &Fetcher{
		client:     client,
		attempts:   cfg.Attempts,
		backoff:    cfg.Backoff,
		maxBackoff: cfg.MaxBackoff,
		delay:      cfg.Delay,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.attempts <= 0 {
		f.attempts = config.DefaultDownloadAttempts
	}
	if f.backoff <= 0 {
		f.backoff = time.Second
	}
	if f.maxBackoff < f.backoff {
		f.maxBackoff = f.backoff
	}
	return f
}

func (f *Fetcher) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.backoff
	b.MaxInterval = f.maxBackoff
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(f.attempts-1)), ctx)
}

// Fetch downloads uri into out. A PDF that fails validation is discarded and
// reported as ErrCodeInvalidPDF. The file is written through a temporary
// name so a failed download never leaves a partial file behind.
func (f *Fetcher) Fetch(ctx context.Context, uri string, kind ResourceKind, out string) error {
	if kind != ResourcePDF && kind != ResourceHTML {
		return errors.Newf(errors.ErrCodeInvalidInput, "invalid resource type %q", kind)
	}
	if uri == "" {
		return errors.NewInvalidInput("resource uri is empty")
	}

	var body []byte
	attempt := 0
	op := func() error {
		attempt++
		resp, err := f.client.R().SetContext(ctx).Get(uri)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		status := resp.StatusCode()
		if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
			return fmt.Errorf("GET %s: %s", uri, resp.Status())
		}
		if resp.IsError() {
			return backoff.Permanent(fmt.Errorf("GET %s: %s", uri, resp.Status()))
		}
		body = resp.Body()
		return nil
	}
	notify := func(err error, wait time.Duration) {
		f.logger.Warn("download failed, retrying",
			logging.String("uri", uri),
			logging.Int("attempt", attempt),
			logging.Duration("wait", wait),
			logging.Err(err))
	}
	if err := backoff.RetryNotify(op, f.policy(ctx), notify); err != nil {
		return errors.Wrapf(err, errors.ErrCodeDownloadFailed, "download %s after %d attempts", uri, attempt)
	}

	if kind == ResourcePDF {
		if err := ValidatePDF(bytes.NewReader(body)); err != nil {
			return errors.Wrapf(err, errors.ErrCodeInvalidPDF, "downloaded %s", uri)
		}
	}
	return writeFileAtomic(out, body)
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "create output dir")
	}
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, errors.ErrCodeInvalidInput, "write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, errors.ErrCodeInvalidInput, "rename %s", tmp)
	}
	return nil
}

// DownloadResult summarizes DownloadResources.
type DownloadResult struct {
	Downloaded int      `json:"downloaded"`
	Skipped    int      `json:"skipped"`
	Failed     []string `json:"failed,omitempty"`
}

// DownloadResources fetches the open-access PDF of every publication into
// pdfDir/<id>.pdf and the landing page of every dataset into
// htmlDir/<id>.html. Existing files are kept unless force is set. A failed
// resource is logged and recorded by id; only a cancelled context stops the
// pass.
func (f *Fetcher) DownloadResources(ctx context.Context, c *Corpus, pdfDir, htmlDir string, force bool) (*DownloadResult, error) {
	type job struct {
		id   string
		uri  string
		kind ResourceKind
		out  string
	}
	jobs := make([]job, 0, len(c.Publications)+len(c.Datasets))
	for _, p := range c.Publications {
		jobs = append(jobs, job{p.ID, p.OpenAccess, ResourcePDF, filepath.Join(pdfDir, p.ID+".pdf")})
	}
	for _, d := range c.Datasets {
		jobs = append(jobs, job{d.ID, d.Page, ResourceHTML, filepath.Join(htmlDir, d.ID+".html")})
	}

	res := &DownloadResult{}
	fetched := false
	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !force {
			if _, err := os.Stat(j.out); err == nil {
				res.Skipped++
				continue
			}
		}
		if fetched && f.delay > 0 {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(f.delay):
			}
		}
		fetched = true

		if err := f.Fetch(ctx, j.uri, j.kind, j.out); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			f.logger.Warn("resource download failed",
				logging.String("id", j.id),
				logging.String("kind", string(j.kind)),
				logging.Err(err))
			res.Failed = append(res.Failed, j.id)
			continue
		}
		res.Downloaded++
	}

	f.logger.Info("resource download finished",
		logging.Int("downloaded", res.Downloaded),
		logging.Int("skipped", res.Skipped),
		logging.Int("failed", len(res.Failed)))
	return res, nil
}

// CopyResult summarizes CopyPDFs.
type CopyResult struct {
	Copied  int `json:"copied"`
	Skipped int `json:"skipped"`
}

// CopyPDFs copies every *.pdf of srcDir into dstDir that is not there yet.
func CopyPDFs(srcDir, dstDir string) (*CopyResult, error) {
	paths, err := filepath.Glob(filepath.Join(srcDir, "*.pdf"))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "list pdf dir")
	}
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "create pdf dir")
	}
	res := &CopyResult{}
	for _, src := range paths {
		dst := filepath.Join(dstDir, filepath.Base(src))
		if _, err := os.Stat(dst); err == nil {
			res.Skipped++
			continue
		}
		if err := copyFile(src, dst); err != nil {
			return res, err
		}
		res.Copied++
	}
	return res, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCodeInvalidInput, "open %s", src)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCodeInvalidInput, "create %s", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrapf(err, errors.ErrCodeInvalidInput, "copy %s", src)
	}
	return out.Close()
}
