package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/baack/wget2/log"
	"github.com/baack/wget2/stats"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/a.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "hello")
	})
	mux.HandleFunc("/b.bin", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.Write(bytes.Repeat([]byte{'x'}, 1000))
	})
	mux.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < 3; i++ {
			fmt.Fprint(w, "chunk")
			flusher.Flush()
		}
	})
	mux.HandleFunc("/short", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.Write([]byte("only ten.."))
	})
	mux.HandleFunc("/agent", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, r.UserAgent())
	})
	mux.HandleFunc("/missing", http.NotFound)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFileName(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/files/archive.tar.gz", "archive.tar.gz"},
		{"https://example.com/", "index.html"},
		{"https://example.com", "index.html"},
		{"https://example.com/dir/", "index.html"},
		{"https://example.com/a%20b.txt", "a b.txt"},
		{"https://example.com/page?x=1", "page"},
		{"://bad", "index.html"},
	}

	for _, tt := range tests {
		if got := FileName(tt.url); got != tt.want {
			t.Errorf("FileName(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestDoFetch(t *testing.T) {
	srv := newTestServer(t)
	dir := t.TempDir()
	ui := &mockUI{}
	results := &mockResults{}
	history := newMockHistory()
	logger := log.NewMemoryLogger()

	jobs := []Job{
		{URL: srv.URL + "/a.txt"},
		{URL: srv.URL + "/b.bin"},
		{URL: srv.URL + "/missing"},
	}

	st, err := DoFetch(context.Background(), jobs, Options{
		Workers:   2,
		OutputDir: dir,
		UI:        ui,
		Logger:    logger,
		Results:   results,
		History:   history,
		RunID:     "run-1",
	})
	if err != nil {
		t.Fatalf("DoFetch failed: %v", err)
	}

	if st.Total != 3 || st.Success != 2 || st.Failed != 1 || st.Skipped != 0 {
		t.Errorf("stats = %+v, want 3 total, 2 success, 1 failed", st)
	}
	if st.Bytes != 1005 {
		t.Errorf("Bytes = %d, want 1005", st.Bytes)
	}

	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	if err != nil || string(data) != "hello" {
		t.Errorf("a.txt = %q, %v", data, err)
	}
	if fi, err := os.Stat(filepath.Join(dir, "b.bin")); err != nil || fi.Size() != 1000 {
		t.Errorf("b.bin stat = %v, %v", fi, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "missing")); !os.IsNotExist(err) {
		t.Errorf("a file was created for a 404 response")
	}

	slots := ui.allSlots()
	if len(slots) != 3 {
		t.Fatalf("registered %d slots, want 3", len(slots))
	}
	var printed []string
	for _, s := range slots {
		if s.deregistered != 1 {
			t.Errorf("slot for worker %d deregistered %d times", s.hint, s.deregistered)
		}
		if s.hint < 0 || s.hint >= 2 {
			t.Errorf("slot hint %d outside the pool", s.hint)
		}
		printed = append(printed, s.printed...)
		if s.label == "b.bin" && (s.size != 1000 || s.written != 1000) {
			t.Errorf("b.bin slot size/written = %d/%d, want 1000/1000", s.size, s.written)
		}
	}
	if len(printed) != 1 || printed[0] != "HTTP ERROR 404" {
		t.Errorf("printed = %v, want [HTTP ERROR 404]", printed)
	}

	if len(results.success) != 2 || len(results.failed) != 1 {
		t.Errorf("result logger got %d success, %d failed", len(results.success), len(results.failed))
	}
	if !logger.HasMessageWithLevel(log.LevelError, "/missing") {
		t.Errorf("failure not logged at error level: %v", logger.Messages())
	}

	if len(history.saved) != 3 || len(history.perRun["run-1"]) != 3 {
		t.Errorf("history got %d records, %d for the run", len(history.saved), len(history.perRun["run-1"]))
	}
	for _, rec := range history.saved {
		if rec.UUID == "" || rec.RunID != "run-1" {
			t.Errorf("history record %+v missing UUID or run ID", rec)
		}
		if strings.HasSuffix(rec.URL, "/missing") && (rec.Status != "failed" || rec.HTTPStatus != 404) {
			t.Errorf("404 record = %+v", rec)
		}
	}
}

func TestDoFetchExistingFileGetsSuffix(t *testing.T) {
	srv := newTestServer(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	jobs := []Job{{URL: srv.URL + "/a.txt"}, {URL: srv.URL + "/a.txt"}}
	st, err := DoFetch(context.Background(), jobs, Options{Workers: 2, OutputDir: dir, UI: &mockUI{}})
	if err != nil {
		t.Fatal(err)
	}
	if st.Success != 2 {
		t.Fatalf("Success = %d, want 2", st.Success)
	}

	old, _ := os.ReadFile(filepath.Join(dir, "a.txt"))
	if string(old) != "old" {
		t.Errorf("existing a.txt was overwritten: %q", old)
	}
	for _, name := range []string{"a.txt.1", "a.txt.2"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil || string(data) != "hello" {
			t.Errorf("%s = %q, %v", name, data, err)
		}
	}
}

func TestDoFetchNoClobberSkips(t *testing.T) {
	srv := newTestServer(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}
	logger := log.NewMemoryLogger()

	st, err := DoFetch(context.Background(), []Job{{URL: srv.URL + "/a.txt"}}, Options{
		OutputDir: dir,
		NoClobber: true,
		UI:        &mockUI{},
		Logger:    logger,
	})
	if err != nil {
		t.Fatal(err)
	}
	if st.Skipped != 1 || st.Success != 0 {
		t.Errorf("stats = %+v, want one skipped", st)
	}
	if !logger.HasMessage("already there") {
		t.Errorf("skip not logged: %v", logger.Messages())
	}
	if _, err := os.Stat(filepath.Join(dir, "a.txt.1")); !os.IsNotExist(err) {
		t.Error("no-clobber created a.txt.1")
	}
}

func TestDoFetchUnknownSize(t *testing.T) {
	srv := newTestServer(t)
	ui := &mockUI{}

	st, err := DoFetch(context.Background(), []Job{{URL: srv.URL + "/stream"}}, Options{OutputDir: t.TempDir(), UI: ui})
	if err != nil {
		t.Fatal(err)
	}
	if st.Success != 1 || st.Bytes != 15 {
		t.Errorf("stats = %+v, want one success of 15 bytes", st)
	}
	s := ui.allSlots()[0]
	if s.size != -1 || s.label != "stream" {
		t.Errorf("Begin(%q, %d), want (stream, -1)", s.label, s.size)
	}
}

func TestDoFetchShortBodyFails(t *testing.T) {
	srv := newTestServer(t)

	st, err := DoFetch(context.Background(), []Job{{URL: srv.URL + "/short"}}, Options{OutputDir: t.TempDir(), UI: &mockUI{}})
	if err != nil {
		t.Fatal(err)
	}
	if st.Failed != 1 {
		t.Errorf("stats = %+v, want one failure", st)
	}
}

func TestDoFetchUserAgentAndOutputName(t *testing.T) {
	srv := newTestServer(t)
	dir := t.TempDir()

	_, err := DoFetch(context.Background(), []Job{{URL: srv.URL + "/agent", Output: "ua.txt"}}, Options{
		OutputDir: dir,
		UserAgent: "test-agent/1.0",
		UI:        &mockUI{},
	})
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "ua.txt"))
	if err != nil || string(data) != "test-agent/1.0" {
		t.Errorf("ua.txt = %q, %v", data, err)
	}
}

func TestDoFetchRecordsStats(t *testing.T) {
	srv := newTestServer(t)
	c := stats.NewCollector(context.Background(), 2, nil)
	defer c.Close()

	jobs := []Job{{URL: srv.URL + "/b.bin"}, {URL: srv.URL + "/missing"}}
	if _, err := DoFetch(context.Background(), jobs, Options{Workers: 2, OutputDir: t.TempDir(), UI: &mockUI{}, Collector: c}); err != nil {
		t.Fatal(err)
	}

	snap := c.GetSnapshot()
	if snap.Queued != 2 || snap.Done != 1 || snap.Failed != 1 || snap.Remaining != 0 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Bytes != 1000 {
		t.Errorf("Bytes = %d, want 1000", snap.Bytes)
	}
	if snap.ActiveWorkers != 0 {
		t.Errorf("ActiveWorkers = %d after DoFetch, want 0", snap.ActiveWorkers)
	}
}

func TestDoFetchCancelled(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st, err := DoFetch(ctx, []Job{{URL: srv.URL + "/a.txt"}}, Options{OutputDir: t.TempDir(), UI: &mockUI{}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("DoFetch error = %v, want context.Canceled", err)
	}
	if st == nil || st.Success != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestWorkerLimitBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	var jobs []Job
	for i := 0; i < 6; i++ {
		jobs = append(jobs, Job{URL: fmt.Sprintf("%s/f%d", srv.URL, i)})
	}

	st, err := DoFetch(context.Background(), jobs, Options{
		Workers:        4,
		InitialWorkers: 1,
		OutputDir:      t.TempDir(),
		UI:             &mockUI{},
	})
	if err != nil {
		t.Fatal(err)
	}
	if st.Success != 6 {
		t.Errorf("Success = %d, want 6", st.Success)
	}
	if p := peak.Load(); p != 1 {
		t.Errorf("peak concurrency = %d, want 1", p)
	}
}

func TestPoolSetWorkerLimit(t *testing.T) {
	ui := &mockUI{}
	p := newPool(4, 2, ui)

	if got := p.Limit(); got != 2 {
		t.Fatalf("initial Limit() = %d, want 2", got)
	}

	p.SetWorkerLimit(3)
	p.SetWorkerLimit(3)
	p.SetWorkerLimit(10)
	p.SetWorkerLimit(0)

	want := []int{3, 4, 1}
	got := ui.resizeCalls()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("OnPoolResize calls = %v, want %v", got, want)
	}

	p.close()
	p.SetWorkerLimit(2)
	if n := len(ui.resizeCalls()); n != 3 {
		t.Errorf("SetWorkerLimit after close reached the UI")
	}
}

func TestPoolRaisingLimitWakesWorkers(t *testing.T) {
	p := newPool(2, 1, &mockUI{})
	ctx := context.Background()

	if !p.acquire(ctx) {
		t.Fatal("first acquire failed")
	}

	acquired := make(chan struct{})
	go func() {
		if p.acquire(ctx) {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second worker ran above the limit")
	case <-time.After(50 * time.Millisecond):
	}

	p.SetWorkerLimit(2)
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("raising the limit did not wake the waiting worker")
	}
	if got := p.Active(); got != 2 {
		t.Errorf("Active() = %d, want 2", got)
	}
}

func TestPoolAcquireCancelled(t *testing.T) {
	p := newPool(1, 1, &mockUI{})
	ctx, cancel := context.WithCancel(context.Background())
	stop := context.AfterFunc(ctx, p.wake)
	defer stop()

	if !p.acquire(ctx) {
		t.Fatal("first acquire failed")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var ok bool
	go func() {
		defer wg.Done()
		ok = p.acquire(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	wg.Wait()
	if ok {
		t.Error("acquire succeeded after cancel")
	}
}

func TestNewLimiter(t *testing.T) {
	if NewLimiter(0) != nil || NewLimiter(-1) != nil {
		t.Error("NewLimiter returned a limiter for a non-positive rate")
	}
	if b := NewLimiter(100).Burst(); b != 100 {
		t.Errorf("Burst() = %d, want 100", b)
	}
	if b := NewLimiter(10 << 20).Burst(); b != 32*1024 {
		t.Errorf("Burst() = %d, want 32768", b)
	}
}

// shortReads records the buffer sizes it is asked to fill.
type shortReads struct {
	sizes []int
	r     io.Reader
}

func (s *shortReads) Read(p []byte) (int, error) {
	s.sizes = append(s.sizes, len(p))
	return s.r.Read(p)
}

func TestLimitedReaderCapsReadsAtBurst(t *testing.T) {
	src := &shortReads{r: strings.NewReader(strings.Repeat("z", 300))}
	lr := &limitedReader{ctx: context.Background(), r: src, lim: NewLimiter(1 << 20)}
	lr.lim.SetBurst(128)

	data, err := io.ReadAll(lr)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 300 {
		t.Errorf("read %d bytes, want 300", len(data))
	}
	for _, n := range src.sizes {
		if n > 128 {
			t.Fatalf("read of %d bytes exceeded the burst", n)
		}
	}
}
