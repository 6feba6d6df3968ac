package download

import (
	"sync"

	"github.com/baack/wget2/historydb"
	"github.com/baack/wget2/stats"
)

// mockUI is a fake ProgressUI recording every call.
type mockUI struct {
	mu      sync.Mutex
	slots   []*mockSlot
	resizes []int
	events  []string
	updates int
}

func (m *mockUI) Start() error { return nil }
func (m *mockUI) Stop()        {}

func (m *mockUI) RegisterWorker(hint int) Slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &mockSlot{hint: hint, size: -2}
	m.slots = append(m.slots, s)
	return s
}

func (m *mockUI) OnPoolResize(workers int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resizes = append(m.resizes, workers)
}

func (m *mockUI) LogEvent(workerID int, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, message)
}

func (m *mockUI) OnStatsUpdate(stats.TopInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
}

func (m *mockUI) allSlots() []*mockSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*mockSlot(nil), m.slots...)
}

func (m *mockUI) resizeCalls() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.resizes...)
}

type mockSlot struct {
	mu           sync.Mutex
	hint         int
	label        string
	size         int64
	written      int64
	printed      []string
	deregistered int
}

func (s *mockSlot) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written += int64(len(p))
	return len(p), nil
}

func (s *mockSlot) Pos() int { return s.hint }

func (s *mockSlot) Begin(label string, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.label = label
	s.size = size
}

func (s *mockSlot) Print(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printed = append(s.printed, text)
}

func (s *mockSlot) Deregister() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deregistered++
}

// mockResults records ResultLogger calls.
type mockResults struct {
	mu      sync.Mutex
	success []string
	failed  []string
}

func (m *mockResults) Success(url, file string, bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.success = append(m.success, url)
}

func (m *mockResults) Failed(url, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, url+": "+reason)
}

// mockHistory records HistoryStore calls.
type mockHistory struct {
	mu      sync.Mutex
	saved   []historydb.DownloadRecord
	perRun  map[string][]historydb.DownloadRecord
	saveErr error
}

func newMockHistory() *mockHistory {
	return &mockHistory{perRun: map[string][]historydb.DownloadRecord{}}
}

func (m *mockHistory) SaveRecord(rec *historydb.DownloadRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, *rec)
	return nil
}

func (m *mockHistory) PutRunDownload(runID string, rec *historydb.DownloadRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.perRun[runID] = append(m.perRun[runID], *rec)
	return nil
}
