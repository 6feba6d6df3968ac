package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/baack/wget2/config"
	"github.com/baack/wget2/stats"
)

// DefaultFileName is used when a URL has no usable path component.
const DefaultFileName = "index.html"

// maxSuffix bounds the file.N search for a free output name.
const maxSuffix = 1 << 16

// ErrExists is returned for a download skipped because no-clobber is set
// and the output file is already there.
var ErrExists = errors.New("file already there")

// Job is one URL to retrieve.
type Job struct {
	URL string

	// Output overrides the file name derived from the URL.
	Output string
}

// Result is the outcome of one Job.
type Result struct {
	Job        Job
	File       string
	Status     stats.DownloadStatus
	HTTPStatus int
	Size       int64 // Content-Length, -1 when unknown
	Bytes      int64
	WorkerID   int
	StartTime  time.Time
	EndTime    time.Time
	Err        error
}

// HTTPError reports a response status of 400 or above.
type HTTPError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: server returned %s", e.URL, e.Status)
}

// FileName derives the local file name from a URL the way wget does: the
// last path element, or index.html for directory URLs.
func FileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return DefaultFileName
	}
	if strings.HasSuffix(u.Path, "/") {
		return DefaultFileName
	}
	name := path.Base(u.Path)
	switch name {
	case "", ".", "/", "..":
		return DefaultFileName
	}
	return name
}

// NewClient returns an HTTP client whose connect, TLS handshake and
// response header phases are each bounded by timeout. The body transfer
// itself is not bounded.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}
	dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   timeout,
			ResponseHeaderTimeout: timeout,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

// NewLimiter returns a limiter for bytesPerSec shared by every worker, or
// nil when bytesPerSec is not positive.
func NewLimiter(bytesPerSec int64) *rate.Limiter {
	if bytesPerSec <= 0 {
		return nil
	}
	burst := int64(32 * 1024)
	if bytesPerSec < burst {
		burst = bytesPerSec
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), int(burst))
}

type fetcher struct {
	client    *http.Client
	userAgent string
	outputDir string
	noClobber bool
	limiter   *rate.Limiter
	counter   io.Writer
}

func newFetcher(opts *Options) *fetcher {
	f := &fetcher{
		client:    opts.Client,
		userAgent: opts.UserAgent,
		outputDir: opts.OutputDir,
		noClobber: opts.NoClobber,
		limiter:   NewLimiter(opts.LimitRate),
		counter:   io.Discard,
	}
	if f.client == nil {
		f.client = NewClient(opts.Timeout)
	}
	if f.userAgent == "" {
		f.userAgent = config.DefaultUserAgent
	}
	if f.outputDir == "" {
		f.outputDir = "."
	}
	if opts.Collector != nil {
		f.counter = byteRecorder{opts.Collector}
	}
	return f
}

// fetch downloads one job, reporting progress to slot.
func (f *fetcher) fetch(ctx context.Context, workerID int, slot Slot, job Job) (res Result) {
	res = Result{Job: job, WorkerID: workerID, Size: -1, StartTime: time.Now(), Status: stats.DownloadFailed}
	defer func() { res.EndTime = time.Now() }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.URL, nil)
	if err != nil {
		res.Err = err
		return res
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		res.Err = err
		return res
	}
	defer resp.Body.Close()

	res.HTTPStatus = resp.StatusCode
	if resp.StatusCode >= http.StatusBadRequest {
		slot.Print(fmt.Sprintf("HTTP ERROR %d", resp.StatusCode))
		res.Err = &HTTPError{URL: job.URL, StatusCode: resp.StatusCode, Status: resp.Status}
		return res
	}

	name := job.Output
	if name == "" {
		name = FileName(job.URL)
	}
	file, out, err := f.create(name)
	res.File = out
	if errors.Is(err, ErrExists) {
		res.Status = stats.DownloadSkipped
		return res
	}
	if err != nil {
		res.Err = err
		return res
	}

	res.Size = resp.ContentLength
	slot.Begin(filepath.Base(out), resp.ContentLength)

	var body io.Reader = resp.Body
	if f.limiter != nil {
		body = &limitedReader{ctx: ctx, r: body, lim: f.limiter}
	}

	n, err := io.Copy(io.MultiWriter(file, slot, f.counter), body)
	res.Bytes = n
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err == nil && resp.ContentLength >= 0 && n < resp.ContentLength {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		res.Err = err
		return res
	}

	res.Status = stats.DownloadSuccess
	return res
}

// create opens a new output file, picking name, name.1, name.2 and so on
// when earlier names exist. With no-clobber an existing name is reported
// as ErrExists instead.
func (f *fetcher) create(name string) (*os.File, string, error) {
	base := filepath.Join(f.outputDir, name)
	if err := os.MkdirAll(filepath.Dir(base), 0755); err != nil {
		return nil, base, err
	}

	for i := 0; i < maxSuffix; i++ {
		p := base
		if i > 0 {
			p = fmt.Sprintf("%s.%d", base, i)
		}
		file, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return file, p, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, p, err
		}
		if f.noClobber {
			return nil, p, ErrExists
		}
	}
	return nil, base, fmt.Errorf("no free file name for %s", base)
}

// limitedReader paces reads through a shared rate limiter.
type limitedReader struct {
	ctx context.Context
	r   io.Reader
	lim *rate.Limiter
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if b := l.lim.Burst(); len(p) > b {
		p = p[:b]
	}
	n, err := l.r.Read(p)
	if n > 0 {
		if werr := l.lim.WaitN(l.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

type byteRecorder struct {
	c *stats.Collector
}

func (b byteRecorder) Write(p []byte) (int, error) {
	b.c.RecordBytes(int64(len(p)))
	return len(p), nil
}
