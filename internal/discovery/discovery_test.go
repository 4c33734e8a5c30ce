package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marianozunino/keeper/internal/client"
	"github.com/marianozunino/keeper/internal/model"
	"github.com/marianozunino/keeper/internal/staleness"
	"github.com/marianozunino/keeper/internal/testutil"
)

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type sliceQueue struct {
	ids []string
}

func (q *sliceQueue) Enqueue(id string) bool {
	q.ids = append(q.ids, id)
	return true
}

type staticLister struct {
	files []model.FileRecord
	err   error
}

func (l staticLister) ListFiles(context.Context) ([]model.FileRecord, error) {
	return l.files, l.err
}

func daysAgo(days int, layout string) string {
	return now.Add(-time.Duration(days) * 24 * time.Hour).Format(layout)
}

func newTestDiscoverer(lister Lister, q Enqueuer, next func() time.Time) (*Discoverer, *bytes.Buffer) {
	var buf bytes.Buffer
	d := New(lister, q, staleness.Classifier{}, zerolog.New(&buf), next)
	d.now = func() time.Time { return now }
	return d, &buf
}

func TestRunCycleEnqueuesStaleFilesInOrder(t *testing.T) {
	const plain = "2006-01-02T15:04:05Z"
	const fraction = "2006-01-02T15:04:05.000Z"

	files := []model.FileRecord{
		{ID: "old-1", DateLastView: daysAgo(45, plain)},
		{ID: "fresh-1", DateLastView: daysAgo(2, fraction)},
		{ID: "old-2", DateLastView: daysAgo(31, fraction)},
		{ID: "fresh-2", DateLastView: daysAgo(29, plain)},
		{ID: "old-3", DateLastView: daysAgo(400, plain)},
	}

	q := &sliceQueue{}
	d, buf := newTestDiscoverer(staticLister{files: files}, q, nil)
	d.RunCycle(context.Background())

	assert.Equal(t, []string{"old-1", "old-2", "old-3"}, q.ids)
	assert.Contains(t, buf.String(), `"candidates":3`)
	assert.Contains(t, buf.String(), `"enqueued":3`)
	assert.Contains(t, buf.String(), `"files":5`)
}

func TestRunCycleCountsMatch(t *testing.T) {
	var files []model.FileRecord
	want := 0
	for i := 0; i < 100; i++ {
		days := i % 60
		files = append(files, model.FileRecord{ID: fmt.Sprintf("f%d", i), DateLastView: daysAgo(days, time.RFC3339)})
		if days > 30 {
			want++
		}
	}

	q := &sliceQueue{}
	d, _ := newTestDiscoverer(staticLister{files: files}, q, nil)
	d.RunCycle(context.Background())

	assert.Len(t, q.ids, want)
}

func TestRunCycleSkipsUnparseableTimestamps(t *testing.T) {
	files := []model.FileRecord{
		{ID: "bad", DateLastView: "last tuesday"},
		{ID: "missing"},
		{ID: "old", DateLastView: daysAgo(40, "2006-01-02T15:04:05Z")},
	}

	q := &sliceQueue{}
	d, buf := newTestDiscoverer(staticLister{files: files}, q, nil)
	d.RunCycle(context.Background())

	assert.Equal(t, []string{"old"}, q.ids)
	assert.Contains(t, buf.String(), "Skipping file with unreadable last view date")
	assert.Contains(t, buf.String(), `"file_id":"bad"`)
	assert.Contains(t, buf.String(), `"file_id":"missing"`)
}

func TestRunCycleNoCandidates(t *testing.T) {
	files := []model.FileRecord{{ID: "fresh", DateLastView: daysAgo(1, "2006-01-02T15:04:05Z")}}

	q := &sliceQueue{}
	d, buf := newTestDiscoverer(staticLister{files: files}, q, nil)
	d.RunCycle(context.Background())

	assert.Empty(t, q.ids)
	assert.Contains(t, buf.String(), "No files need to refresh")
	assert.Contains(t, buf.String(), `"candidates":0`)
}

func TestRunCycleListErrors(t *testing.T) {
	testCases := []struct {
		name      string
		err       error
		wantLog   string
		wantLevel string
	}{
		{"unauthorized", client.ErrUnauthorized, "invalid API key", `"level":"warn"`},
		{"network", &client.HostUnavailableError{Op: "list files", Err: errors.New("dial tcp: refused")}, "Host is unavailable", `"level":"error"`},
		{"status", &client.HostUnavailableError{Op: "list files", StatusCode: 502}, "Unknown error", `"level":"warn"`},
		{"parse", &client.ParseError{Op: "list files", Err: errors.New("unexpected EOF")}, "File list parsing failed", `"level":"error"`},
		{"other", errors.New("boom"), "Fetching file list failed", `"level":"error"`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q := &sliceQueue{}
			d, buf := newTestDiscoverer(staticLister{err: tc.err}, q, nil)

			assert.NotPanics(t, func() { d.RunCycle(context.Background()) })
			assert.Empty(t, q.ids)
			assert.Contains(t, buf.String(), tc.wantLog)
			assert.Contains(t, buf.String(), tc.wantLevel)
		})
	}
}

func TestRunCycleLogsNextRun(t *testing.T) {
	next := time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC)

	d, buf := newTestDiscoverer(staticLister{err: client.ErrUnauthorized}, &sliceQueue{}, func() time.Time { return next })
	d.RunCycle(context.Background())

	assert.Contains(t, buf.String(), "Next finding scheduled")
	assert.Contains(t, buf.String(), next.Format(time.RFC3339))
}

func TestRunCycleAgainstHost(t *testing.T) {
	host := testutil.NewFakeHost(t, "key")
	host.SetFiles(
		model.FileRecord{ID: "stale", DateLastView: time.Now().Add(-40 * 24 * time.Hour).UTC().Format("2006-01-02T15:04:05.000Z")},
		model.FileRecord{ID: "fresh", DateLastView: time.Now().UTC().Format("2006-01-02T15:04:05Z")},
	)

	q := &sliceQueue{}
	d := New(client.NewClient(host.URL, "key", time.Second), q, staleness.Classifier{}, zerolog.Nop(), nil)
	d.RunCycle(context.Background())

	assert.Equal(t, []string{"stale"}, q.ids)
	assert.Equal(t, 1, host.ListCalls())
}

func TestRunCycleAgainstHostParseFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"files": [{"id": "a", "date_last_view": "2020-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	q := &sliceQueue{}
	var buf bytes.Buffer
	d := New(client.NewClient(srv.URL, "key", time.Second), q, staleness.Classifier{}, zerolog.New(&buf), nil)
	d.RunCycle(context.Background())

	require.Empty(t, q.ids)
	assert.Contains(t, buf.String(), "File list parsing failed")
}
