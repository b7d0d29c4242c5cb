package schedule

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/kirsrus/attendance/server/model"
	"github.com/kirsrus/attendance/server/store/file"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*file.Files, string) {
	dir := t.TempDir()
	files, err := file.NewFiles(context.Background(), &file.ConfigFiles{
		FacesFile:    filepath.Join(dir, "face_encodings.gob"),
		LedgerFile:   filepath.Join(dir, "attendance.csv"),
		ScheduleFile: filepath.Join(dir, "config.json"),
	})
	require.NoError(t, err)
	return files, filepath.Join(dir, "config.json")
}

func TestLoadDefaults(t *testing.T) {
	st, path := newStore(t)
	schedule, err := NewSchedule(context.Background(), st, &ConfigSchedule{})
	require.NoError(t, err)

	assert.Equal(t, Default(), schedule.Current())
	assert.Equal(t, "09:00", schedule.Current().WorkStart.Short())
	assert.Equal(t, "17:00", schedule.Current().WorkEnd.Short())

	// Значения по умолчанию сразу сохраняются
	record, err := st.LoadSchedule()
	require.NoError(t, err)
	assert.Equal(t, Default().Record(), *record)
	_, err = ioutil.ReadFile(path)
	require.NoError(t, err)
}

func TestLoadBackfill(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected func(s *model.Schedule)
	}{
		{
			name:    "неполная запись",
			content: `{"work_start": "08:30", "late_threshold": 5}`,
			expected: func(s *model.Schedule) {
				s.WorkStart = 8*3600 + 30*60
				s.LateThreshold = 5
			},
		},
		{
			name:     "значения вне диапазона",
			content:  `{"work_start": "25:00", "late_threshold": -3, "recognition_tolerance": 1.5, "location": "Склад"}`,
			expected: func(s *model.Schedule) { s.Location = "Склад" },
		},
		{
			name:     "нечитаемый файл",
			content:  `{"work_start": `,
			expected: func(s *model.Schedule) {},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, path := newStore(t)
			require.NoError(t, ioutil.WriteFile(path, []byte(tt.content), 0644))

			schedule, err := NewSchedule(context.Background(), st, &ConfigSchedule{})
			require.NoError(t, err)
			expected := Default()
			tt.expected(&expected)
			assert.Equal(t, expected, schedule.Current())

			record, err := st.LoadSchedule()
			require.NoError(t, err)
			assert.Equal(t, expected.Record(), *record)
		})
	}
}

func TestSave(t *testing.T) {
	st, _ := newStore(t)
	schedule, err := NewSchedule(context.Background(), st, &ConfigSchedule{})
	require.NoError(t, err)

	next := Default()
	next.WorkStart = 10 * 3600
	next.Tolerance = 0.5
	require.NoError(t, schedule.Save(next))
	assert.Equal(t, next, schedule.Current())

	reloaded, err := NewSchedule(context.Background(), st, &ConfigSchedule{})
	require.NoError(t, err)
	assert.Equal(t, next, reloaded.Current())

	bad := next
	bad.Tolerance = 0
	err = schedule.Save(bad)
	require.Error(t, err)
	assert.True(t, errors.IsNotValid(err))
	assert.Equal(t, next, schedule.Current())

	record, err := st.LoadSchedule()
	require.NoError(t, err)
	assert.Equal(t, next.Record(), *record)
}

func TestUpdate(t *testing.T) {
	tests := []struct {
		name  string
		form  model.ScheduleForm
		valid bool
	}{
		{"корректные значения", model.ScheduleForm{WorkStart: "08:45", WorkEnd: "18:00", LateThreshold: "10", Tolerance: "0.5", Location: " Лаборатория "}, true},
		{"без окончания дня", model.ScheduleForm{WorkStart: "08:45", LateThreshold: "0", Tolerance: "1"}, true},
		{"опоздание не число", model.ScheduleForm{WorkStart: "08:45", LateThreshold: "abc", Tolerance: "0.5"}, false},
		{"отрицательное опоздание", model.ScheduleForm{WorkStart: "08:45", LateThreshold: "-1", Tolerance: "0.5"}, false},
		{"порог больше единицы", model.ScheduleForm{WorkStart: "08:45", LateThreshold: "10", Tolerance: "1.2"}, false},
		{"нулевой порог", model.ScheduleForm{WorkStart: "08:45", LateThreshold: "10", Tolerance: "0"}, false},
		{"некорректное время", model.ScheduleForm{WorkStart: "8.45", LateThreshold: "10", Tolerance: "0.5"}, false},
		{"пустое время", model.ScheduleForm{LateThreshold: "10", Tolerance: "0.5"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, _ := newStore(t)
			schedule, err := NewSchedule(context.Background(), st, &ConfigSchedule{})
			require.NoError(t, err)

			res, err := schedule.Update(tt.form)
			if !tt.valid {
				require.Error(t, err)
				assert.True(t, errors.IsNotValid(err), errors.ErrorStack(err))
				assert.Equal(t, Default(), schedule.Current())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, res, schedule.Current())
			assert.Equal(t, "08:45", res.WorkStart.Short())
			if tt.form.WorkEnd == "" {
				assert.Equal(t, "17:00", res.WorkEnd.Short())
			}
		})
	}
}

func TestUpdateSecondsSurviveRestart(t *testing.T) {
	st, _ := newStore(t)
	schedule, err := NewSchedule(context.Background(), st, &ConfigSchedule{})
	require.NoError(t, err)

	saved, err := schedule.Update(model.ScheduleForm{WorkStart: "09:00:30", LateThreshold: "15", Tolerance: "0.6", Location: "Main Office"})
	require.NoError(t, err)

	restarted, err := NewSchedule(context.Background(), st, &ConfigSchedule{})
	require.NoError(t, err)
	assert.Equal(t, saved, restarted.Current())
	assert.Equal(t, "09:00:30", restarted.Current().Form().WorkStart)

	// 09:15:15 не опоздание ни до, ни после перезапуска
	mark := model.Clock(9*3600 + 15*60 + 15)
	assert.False(t, mark > saved.LateAfter())
	assert.False(t, mark > restarted.Current().LateAfter())
}
