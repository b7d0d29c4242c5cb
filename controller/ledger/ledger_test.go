package ledger

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kirsrus/attendance/server/controller/schedule"
	"github.com/kirsrus/attendance/server/model"
	"github.com/kirsrus/attendance/server/store/file"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore хранилище журнала, не принимающее записи
type failingStore struct {
	records []model.AttendanceRecord
}

func (m *failingStore) LoadRecords() ([]model.AttendanceRecord, error) { return m.records, nil }
func (m *failingStore) AppendRecord(model.AttendanceRecord) error      { return errors.New("диск") }
func (m *failingStore) ResetRecords() error                            { return nil }

func newStore(t *testing.T) (*file.Files, string) {
	dir := t.TempDir()
	files, err := file.NewFiles(context.Background(), &file.ConfigFiles{
		FacesFile:    filepath.Join(dir, "face_encodings.gob"),
		LedgerFile:   filepath.Join(dir, "attendance.csv"),
		ScheduleFile: filepath.Join(dir, "config.json"),
	})
	require.NoError(t, err)
	return files, dir
}

func newLedger(t *testing.T) (*Ledger, *file.Files, string) {
	st, dir := newStore(t)
	ledger, err := NewLedger(context.Background(), st, &ConfigLedger{})
	require.NoError(t, err)
	return ledger, st, dir
}

func at(hour, min, sec int) time.Time {
	return time.Date(2024, 3, 5, hour, min, sec, 0, time.Local)
}

func TestClassify(t *testing.T) {
	ledger, _, _ := newLedger(t)
	tests := []struct {
		name     string
		time     time.Time
		late     int
		expected model.Status
	}{
		{"до начала дня", at(8, 59, 59), 15, model.StatusOnTime},
		{"граница допуска", at(9, 15, 0), 15, model.StatusOnTime},
		{"секунда после допуска", at(9, 15, 1), 15, model.StatusLate},
		{"без допуска ровно в начало", at(9, 0, 0), 0, model.StatusOnTime},
		{"без допуска секунда после начала", at(9, 0, 1), 0, model.StatusLate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := schedule.Default()
			s.LateThreshold = tt.late
			assert.Equal(t, tt.expected, ledger.Classify(model.ClockOf(tt.time), s))
		})
	}
}

func TestCommit(t *testing.T) {
	ledger, st, dir := newLedger(t)
	s := schedule.Default()

	assert.False(t, ledger.AlreadyMarked("Ana", at(0, 0, 0)))
	record, err := ledger.Commit("Ana", "S1", at(9, 20, 0), "a.jpg", s)
	require.NoError(t, err)
	assert.Equal(t, model.StatusLate, record.Status)
	assert.Equal(t, "2024-03-05", record.DateString())
	assert.Equal(t, "09:20:00", record.Time.String())
	assert.True(t, ledger.AlreadyMarked("Ana", at(18, 0, 0)))
	assert.False(t, ledger.AlreadyMarked("Ana", at(9, 0, 0).AddDate(0, 0, 1)))

	before, err := ioutil.ReadFile(filepath.Join(dir, "attendance.csv"))
	require.NoError(t, err)

	_, err = ledger.Commit("Ana", "S1", at(10, 0, 0), "b.jpg", s)
	require.Error(t, err)
	assert.True(t, errors.IsAlreadyExists(err))

	after, err := ioutil.ReadFile(filepath.Join(dir, "attendance.csv"))
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// На следующий день отметка снова возможна
	_, err = ledger.Commit("Ana", "S1", at(8, 0, 0).AddDate(0, 0, 1), "", s)
	require.NoError(t, err)

	reloaded, err := NewLedger(context.Background(), st, &ConfigLedger{})
	require.NoError(t, err)
	assert.Equal(t, ledger.Records(nil), reloaded.Records(nil))
	assert.True(t, reloaded.AlreadyMarked("Ana", at(12, 0, 0)))
}

func TestCommitStoreFailure(t *testing.T) {
	ledger, err := NewLedger(context.Background(), &failingStore{}, &ConfigLedger{})
	require.NoError(t, err)

	_, err = ledger.Commit("Ana", "S1", at(9, 0, 0), "", schedule.Default())
	require.Error(t, err)
	assert.False(t, errors.IsAlreadyExists(err))
	assert.False(t, ledger.AlreadyMarked("Ana", at(9, 0, 0)))
	assert.Empty(t, ledger.Records(nil))
}

func TestCommitConcurrent(t *testing.T) {
	ledger, _, _ := newLedger(t)
	s := schedule.Default()

	var wg sync.WaitGroup
	var mu sync.Mutex
	committed, duplicates := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := ledger.Commit("Ana", "S1", at(9, 0, i), "", s)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				committed++
			} else if errors.IsAlreadyExists(err) {
				duplicates++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, committed)
	assert.Equal(t, 19, duplicates)
	assert.Len(t, ledger.Records(nil), 1)
}

func TestSummaryAndRecords(t *testing.T) {
	ledger, _, _ := newLedger(t)
	s := schedule.Default()

	_, err := ledger.Commit("Ana", "S1", at(9, 20, 0), "", s)
	require.NoError(t, err)
	_, err = ledger.Commit("Bob", "S2", at(8, 50, 0), "", s)
	require.NoError(t, err)
	_, err = ledger.Commit("Eve", "S3", at(9, 0, 0).AddDate(0, 0, -1), "", s)
	require.NoError(t, err)

	assert.Equal(t, model.Summary{Date: "2024-03-05", OnTime: 1, Late: 1, Total: 2}, ledger.Summary(at(12, 0, 0)))
	assert.Equal(t, model.Summary{Date: "2024-03-07", OnTime: 0, Late: 0, Total: 0}, ledger.Summary(at(12, 0, 0).AddDate(0, 0, 2)))

	day := at(0, 0, 0)
	records := ledger.Records(&day)
	require.Len(t, records, 2)
	assert.Equal(t, "Ana", records[0].Name)
	assert.Equal(t, "Bob", records[1].Name)
	assert.Len(t, ledger.Records(nil), 3)
}

func TestCorrupt(t *testing.T) {
	st, dir := newStore(t)
	path := filepath.Join(dir, "attendance.csv")
	require.NoError(t, ioutil.WriteFile(path, []byte("не журнал\n"), 0644))

	ledger, err := NewLedger(context.Background(), st, &ConfigLedger{})
	require.NoError(t, err)
	assert.Empty(t, ledger.Records(nil))

	content, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Name,Student_ID,Date,Time,Status,Photo_Path\n", string(content))
	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestExport(t *testing.T) {
	ledger, _, dir := newLedger(t)
	s := schedule.Default()
	_, err := ledger.Commit("Ana", "S1", at(9, 20, 0), "a.jpg", s)
	require.NoError(t, err)
	_, err = ledger.Commit("Bob", "S2", at(8, 50, 0), "", s)
	require.NoError(t, err)
	summary := ledger.Summary(at(12, 0, 0))

	reports := filepath.Join(dir, "reports")
	now := at(18, 30, 0)
	path, err := ledger.Export(reports, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(reports, "report_20240305_183000.csv"), path)

	exported, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	live, err := ioutil.ReadFile(filepath.Join(dir, "attendance.csv"))
	require.NoError(t, err)
	assert.Equal(t, string(live), string(exported))
	assert.Equal(t, summary, ledger.Summary(at(12, 0, 0)))

	second, err := ledger.Export(reports, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(reports, "report_20240305_183000_1.csv"), second)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}
