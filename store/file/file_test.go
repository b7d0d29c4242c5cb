package file

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kirsrus/attendance/server/model"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFiles(t *testing.T) (*Files, string) {
	dir := t.TempDir()
	files, err := NewFiles(context.Background(), &ConfigFiles{
		FacesFile:    filepath.Join(dir, "face_encodings.gob"),
		LedgerFile:   filepath.Join(dir, "attendance.csv"),
		ScheduleFile: filepath.Join(dir, "config.json"),
	})
	require.NoError(t, err)
	return files, dir
}

func TestNewFiles(t *testing.T) {
	_, err := NewFiles(context.Background(), nil)
	assert.Error(t, err)
	_, err = NewFiles(context.Background(), &ConfigFiles{FacesFile: "a"})
	assert.Error(t, err)
}

func TestIdentities(t *testing.T) {
	files, _ := newFiles(t)

	t.Run("отсутствующий файл - пустой реестр", func(t *testing.T) {
		res, err := files.LoadIdentities()
		require.NoError(t, err)
		assert.Empty(t, res)
	})

	t.Run("сохранение и чтение", func(t *testing.T) {
		identities := []model.Identity{
			{Name: "Ana", ExternalID: "S1", Descriptors: []model.Descriptor{{0.1, 0.2}, {0.3, 0.4}}},
			{Name: "Ana", ExternalID: "S2", Descriptors: []model.Descriptor{{0.5, 0.6}}},
			{Name: "Bob", ExternalID: "S3", Descriptors: []model.Descriptor{{0.7, 0.8}}},
		}
		require.NoError(t, files.SaveIdentities(identities))
		res, err := files.LoadIdentities()
		require.NoError(t, err)
		assert.Equal(t, identities, res)
	})

	t.Run("пустой реестр", func(t *testing.T) {
		require.NoError(t, files.SaveIdentities(nil))
		res, err := files.LoadIdentities()
		require.NoError(t, err)
		assert.Empty(t, res)
	})

	t.Run("повреждённый файл", func(t *testing.T) {
		require.NoError(t, ioutil.WriteFile(files.facesFile, []byte("мусор"), 0644))
		_, err := files.LoadIdentities()
		require.Error(t, err)
		assert.True(t, model.IsCorruptState(err))

		require.NoError(t, files.ResetIdentities())
		res, err := files.LoadIdentities()
		require.NoError(t, err)
		assert.Empty(t, res)

		matches, err := filepath.Glob(files.facesFile + ".corrupt-*")
		require.NoError(t, err)
		assert.Len(t, matches, 1)
	})
}

func TestRecords(t *testing.T) {
	files, _ := newFiles(t)
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.Local)

	res, err := files.LoadRecords()
	require.NoError(t, err)
	assert.Empty(t, res)

	content, err := ioutil.ReadFile(files.ledgerFile)
	require.NoError(t, err)
	assert.Equal(t, "Name,Student_ID,Date,Time,Status,Photo_Path\n", string(content))

	records := []model.AttendanceRecord{
		{Name: "Ana", ExternalID: "S1", Date: day, Time: 9*3600 + 20*60, Status: model.StatusLate, PhotoPath: "attendance_photos/Ana.jpg"},
		{Name: "Иван, мл.", ExternalID: "S2", Date: day, Time: 8 * 3600, Status: model.StatusOnTime},
	}
	for _, v := range records {
		require.NoError(t, files.AppendRecord(v))
	}

	res, err = files.LoadRecords()
	require.NoError(t, err)
	assert.Equal(t, records, res)

	content, err = ioutil.ReadFile(files.ledgerFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Ana,S1,2024-03-05,09:20:00,Late,attendance_photos/Ana.jpg\n")
	assert.Contains(t, string(content), "\"Иван, мл.\",S2,2024-03-05,08:00:00,Present,\n")
}

func TestRecordsCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"чужой заголовок", "a,b,c,d,e,f\n"},
		{"пустой файл", ""},
		{"неполная строка", "Name,Student_ID,Date,Time,Status,Photo_Path\nAna,S1\n"},
		{"неизвестный статус", "Name,Student_ID,Date,Time,Status,Photo_Path\nAna,S1,2024-03-05,09:00:00,Absent,\n"},
		{"некорректная дата", "Name,Student_ID,Date,Time,Status,Photo_Path\nAna,S1,05.03.2024,09:00:00,Late,\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, _ := newFiles(t)
			require.NoError(t, ioutil.WriteFile(files.ledgerFile, []byte(tt.content), 0644))

			_, err := files.LoadRecords()
			require.Error(t, err)
			assert.True(t, model.IsCorruptState(err))

			require.NoError(t, files.ResetRecords())
			res, err := files.LoadRecords()
			require.NoError(t, err)
			assert.Empty(t, res)
		})
	}
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.csv")
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.Local)
	records := []model.AttendanceRecord{
		{Name: "Ana", ExternalID: "S1", Date: day, Time: 9 * 3600, Status: model.StatusOnTime},
	}
	require.NoError(t, WriteReport(path, records))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	res, err := parseLedger(f)
	require.NoError(t, err)
	assert.Equal(t, records, res)
}

func TestSchedule(t *testing.T) {
	files, _ := newFiles(t)

	_, err := files.LoadSchedule()
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	schedule := model.Schedule{WorkStart: 9 * 3600, WorkEnd: 17 * 3600, LateThreshold: 15, Tolerance: 0.6, Location: "Main Office"}
	require.NoError(t, files.SaveSchedule(schedule.Record()))

	content, err := ioutil.ReadFile(files.scheduleFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"work_start": "09:00"`)
	assert.Contains(t, string(content), `"recognition_tolerance": 0.6`)

	record, err := files.LoadSchedule()
	require.NoError(t, err)
	assert.Equal(t, schedule.Record(), *record)

	require.NoError(t, ioutil.WriteFile(files.scheduleFile, []byte("{"), 0644))
	_, err = files.LoadSchedule()
	require.Error(t, err)
	assert.True(t, model.IsCorruptState(err))
}

func TestEvidence(t *testing.T) {
	dir := t.TempDir()
	evidence, err := NewEvidence(context.Background(), &ConfigEvidence{
		EvidenceDir: filepath.Join(dir, "attendance_photos"),
		FacesDir:    filepath.Join(dir, "registered_faces"),
	})
	require.NoError(t, err)

	at := time.Date(2024, 3, 5, 9, 20, 1, 0, time.Local)
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	t.Run("снимок отметки", func(t *testing.T) {
		path, err := evidence.SaveAttendance(at, "Ana Lee", png)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "attendance_photos", "2024.03.05", "Ana_Lee_20240305092001.png"), path)

		second, err := evidence.SaveAttendance(at, "Ana Lee", []byte("не картинка"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "attendance_photos", "2024.03.05", "Ana_Lee_20240305092001.jpg"), second)

		third, err := evidence.SaveAttendance(at, "Ana Lee", png)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(third, "Ana_Lee_20240305092001_1.png"))

		content, err := evidence.Image(path)
		require.NoError(t, err)
		assert.Equal(t, png, content)

		require.NoError(t, evidence.Remove(path))
		_, err = evidence.Image(path)
		assert.True(t, errors.IsNotFound(err))
		assert.NoError(t, evidence.Remove(path))
	})

	t.Run("удалённый снимок не отдаётся из кэша", func(t *testing.T) {
		path, err := evidence.SaveAttendance(at.Add(time.Hour), "Ana Lee", png)
		require.NoError(t, err)

		// Первое чтение кладёт снимок в кэш, повторное отдаётся из кэша
		_, err = evidence.Image(path)
		require.NoError(t, err)
		content, err := evidence.Image(path)
		require.NoError(t, err)
		assert.Equal(t, png, content)

		require.NoError(t, evidence.Remove(path))
		assert.NoFileExists(t, path)
		_, err = evidence.Image(path)
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("снимок регистрации", func(t *testing.T) {
		path, err := evidence.SaveEnrollment(at, "Bob", png)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "registered_faces", "Bob_20240305092001.png"), path)
	})

	t.Run("пустой снимок", func(t *testing.T) {
		_, err := evidence.SaveAttendance(at, "Ana", nil)
		assert.True(t, errors.IsNotValid(err))
	})

	t.Run("путь вне хранилища", func(t *testing.T) {
		_, err := evidence.Image(filepath.Join(dir, "attendance_photos", "..", "secret.txt"))
		assert.True(t, errors.IsNotValid(err))
		assert.True(t, errors.IsNotValid(evidence.Remove("/etc/passwd")))
	})
}
