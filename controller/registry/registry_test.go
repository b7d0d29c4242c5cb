package registry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kirsrus/attendance/server/model"
	"github.com/kirsrus/attendance/server/store/file"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore хранилище реестра в памяти с управляемыми ошибками
type memoryStore struct {
	identities []model.Identity
	loadErr    error
	saveErr    error
	resets     int
}

func (m *memoryStore) LoadIdentities() ([]model.Identity, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.identities, nil
}

func (m *memoryStore) SaveIdentities(identities []model.Identity) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.identities = identities
	return nil
}

func (m *memoryStore) ResetIdentities() error {
	m.resets++
	m.loadErr = nil
	m.identities = nil
	return nil
}

func newFileStore(t *testing.T) *file.Files {
	dir := t.TempDir()
	files, err := file.NewFiles(context.Background(), &file.ConfigFiles{
		FacesFile:    filepath.Join(dir, "face_encodings.gob"),
		LedgerFile:   filepath.Join(dir, "attendance.csv"),
		ScheduleFile: filepath.Join(dir, "config.json"),
	})
	require.NoError(t, err)
	return files
}

func TestNewRegistry(t *testing.T) {
	_, err := NewRegistry(context.Background(), &memoryStore{}, nil)
	assert.Error(t, err)
	_, err = NewRegistry(context.Background(), nil, &ConfigRegistry{})
	assert.Error(t, err)

	t.Run("повреждённый реестр", func(t *testing.T) {
		st := &memoryStore{loadErr: model.NewCorruptState("faces", errors.New("мусор"))}
		registry, err := NewRegistry(context.Background(), st, &ConfigRegistry{})
		require.NoError(t, err)
		assert.Empty(t, registry.List())
		assert.Equal(t, 1, st.resets)
	})

	t.Run("ошибка чтения", func(t *testing.T) {
		st := &memoryStore{loadErr: errors.New("диск")}
		_, err := NewRegistry(context.Background(), st, &ConfigRegistry{})
		assert.Error(t, err)
	})
}

func TestAdd(t *testing.T) {
	registry, err := NewRegistry(context.Background(), &memoryStore{}, &ConfigRegistry{})
	require.NoError(t, err)

	ref, created, err := registry.Add(" Ana ", "S1", model.Descriptor{0, 0})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.IdentityRef{Index: 0, Name: "Ana", ExternalID: "S1", Descriptors: 1}, ref)

	ref, created, err = registry.Add("Ana", "S1", model.Descriptor{0.1, 0})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 2, ref.Descriptors)

	// Совпадение имени с другим идентификатором - отдельная персона
	ref, created, err = registry.Add("Ana", "S2", model.Descriptor{1, 1})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, ref.Index)

	assert.Len(t, registry.List(), 2)
	_, version := registry.Snapshot()
	assert.Equal(t, uint64(3), version)
}

func TestAddInvalid(t *testing.T) {
	registry, err := NewRegistry(context.Background(), &memoryStore{}, &ConfigRegistry{})
	require.NoError(t, err)
	_, _, err = registry.Add("Ana", "S1", model.Descriptor{0, 0})
	require.NoError(t, err)

	tests := []struct {
		name       string
		person     string
		externalID string
		descriptor model.Descriptor
	}{
		{"пустое имя", "", "S2", model.Descriptor{0, 0}},
		{"имя из пробелов", "   ", "S2", model.Descriptor{0, 0}},
		{"пустой идентификатор", "Bob", " ", model.Descriptor{0, 0}},
		{"пустой дескриптор", "Bob", "S2", nil},
		{"другая длина дескриптора", "Bob", "S2", model.Descriptor{0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := registry.Add(tt.person, tt.externalID, tt.descriptor)
			require.Error(t, err)
			assert.True(t, errors.IsNotValid(err))
			assert.Len(t, registry.List(), 1)
		})
	}
}

func TestRemove(t *testing.T) {
	st := newFileStore(t)
	registry, err := NewRegistry(context.Background(), st, &ConfigRegistry{})
	require.NoError(t, err)
	_, _, err = registry.Add("Ana", "S1", model.Descriptor{0, 0})
	require.NoError(t, err)

	before := registry.List()
	beforeStored, err := st.LoadIdentities()
	require.NoError(t, err)

	_, _, err = registry.Add("Bob", "S2", model.Descriptor{1, 1})
	require.NoError(t, err)
	removed, err := registry.Remove(1)
	require.NoError(t, err)
	assert.Equal(t, "Bob", removed.Name)

	assert.Equal(t, before, registry.List())
	afterStored, err := st.LoadIdentities()
	require.NoError(t, err)
	assert.Equal(t, beforeStored, afterStored)

	_, err = registry.Remove(5)
	assert.True(t, errors.IsNotFound(err))
	_, err = registry.Remove(-1)
	assert.True(t, errors.IsNotFound(err))
}

func TestPersistence(t *testing.T) {
	st := newFileStore(t)
	registry, err := NewRegistry(context.Background(), st, &ConfigRegistry{})
	require.NoError(t, err)
	_, _, err = registry.Add("Ana", "S1", model.Descriptor{0, 0})
	require.NoError(t, err)
	_, _, err = registry.Add("Bob", "S2", model.Descriptor{1, 1})
	require.NoError(t, err)
	_, _, err = registry.Add("Ana", "S1", model.Descriptor{0.2, 0})
	require.NoError(t, err)

	reloaded, err := NewRegistry(context.Background(), st, &ConfigRegistry{})
	require.NoError(t, err)
	assert.Equal(t, registry.List(), reloaded.List())
	expected, _ := registry.Snapshot()
	actual, _ := reloaded.Snapshot()
	assert.Equal(t, expected, actual)

	index, ok := reloaded.Find("Bob ", "S2")
	assert.True(t, ok)
	assert.Equal(t, 1, index)
}

func TestSaveFailure(t *testing.T) {
	st := &memoryStore{}
	registry, err := NewRegistry(context.Background(), st, &ConfigRegistry{})
	require.NoError(t, err)
	_, _, err = registry.Add("Ana", "S1", model.Descriptor{0, 0})
	require.NoError(t, err)

	st.saveErr = errors.New("диск переполнен")
	_, _, err = registry.Add("Bob", "S2", model.Descriptor{1, 1})
	require.Error(t, err)
	_, err = registry.Remove(0)
	require.Error(t, err)

	assert.Len(t, registry.List(), 1)
	_, version := registry.Snapshot()
	assert.Equal(t, uint64(1), version)
}

func TestSnapshotImmutable(t *testing.T) {
	registry, err := NewRegistry(context.Background(), &memoryStore{}, &ConfigRegistry{})
	require.NoError(t, err)
	_, _, err = registry.Add("Ana", "S1", model.Descriptor{0, 0})
	require.NoError(t, err)

	snapshot, _ := registry.Snapshot()
	_, _, err = registry.Add("Ana", "S1", model.Descriptor{1, 1})
	require.NoError(t, err)
	_, err = registry.Remove(0)
	require.NoError(t, err)

	require.Len(t, snapshot, 1)
	assert.Len(t, snapshot[0].Descriptors, 1)
}
