package registry

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/kirsrus/attendance/server/controller"
	"github.com/kirsrus/attendance/server/model"
	"github.com/kirsrus/attendance/server/pkg/logger"
	"github.com/kirsrus/attendance/server/pkg/validator"
	"github.com/kirsrus/attendance/server/store"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
)

// Registry реестр зарегистрированных персон. Инициируется через NewRegistry.
// Каждое изменение сначала сохраняется в хранилище и только затем становится видимым.
// Срезы, возвращаемые Snapshot, не изменяются
type Registry struct {
	ctx       context.Context
	log       *logrus.Entry
	validator *validator.Validator
	store     store.RegistryStore

	mu         sync.RWMutex
	identities []model.Identity
	version    uint64
}

// ConfigRegistry конфигурация Registry
type ConfigRegistry struct {
	Log *logrus.Logger
}

// NewRegistry конструктор Registry. Читает реестр из хранилища. Нечитаемый реестр откладывается
// в сторону и работа начинается с пустого
func NewRegistry(ctx context.Context, registryStore store.RegistryStore, config *ConfigRegistry) (*Registry, error) {
	if config == nil {
		return nil, errors.New("не установлен config")
	}
	if config.Log == nil {
		config.Log = logger.Discard()
	}
	if registryStore == nil {
		return nil, errors.New("не указано хранилище реестра")
	}

	registry := Registry{
		ctx: ctx,
		log: config.Log.WithFields(map[string]interface{}{
			"module": "registry",
			"scope":  "controller",
		}),
		validator: validator.Get(),
		store:     registryStore,
	}

	identities, err := registryStore.LoadIdentities()
	if err != nil {
		if !model.IsCorruptState(err) {
			return nil, errors.Annotate(err, "ошибка чтения реестра")
		}
		registry.log.Errorf("%v, начинаем с пустого реестра", err)
		if err := registryStore.ResetIdentities(); err != nil {
			return nil, errors.Trace(err)
		}
		identities = nil
	}
	registry.identities = identities
	registry.log.Infof("загружено персон: %d", len(identities))

	return &registry, nil
}

var _ controller.RegistryCtl = (*Registry)(nil)

// descriptorLen длина дескрипторов реестра или 0 для пустого реестра
func (m *Registry) descriptorLen() int {
	for _, v := range m.identities {
		if len(v.Descriptors) != 0 {
			return len(v.Descriptors[0])
		}
	}
	return 0
}

func validDescriptor(descriptor model.Descriptor) error {
	if descriptor.IsEmpty() {
		return errors.NotValidf("пустой дескриптор")
	}
	for _, v := range descriptor {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.NotValidf("дескриптор с нечисловым значением")
		}
	}
	return nil
}

// Add добавляет дескриптор персоне с тем же именем и идентификатором или регистрирует новую персону.
// Возвращает ссылку на персону и true, если персона создана
func (m *Registry) Add(name, externalID string, descriptor model.Descriptor) (model.IdentityRef, bool, error) {
	identity := model.Identity{Name: name, ExternalID: externalID}
	if err := m.validator.Validate(&identity); err != nil {
		return model.IdentityRef{}, false, errors.NewNotValid(err, "некорректные данные персоны")
	}
	if err := validDescriptor(descriptor); err != nil {
		return model.IdentityRef{}, false, errors.Trace(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if size := m.descriptorLen(); size != 0 && size != descriptor.Len() {
		return model.IdentityRef{}, false, errors.NotValidf("длина дескриптора %d (в реестре %d)", descriptor.Len(), size)
	}

	// Новое состояние строится копированием, текущее остаётся доступным читателям
	next := make([]model.Identity, len(m.identities), len(m.identities)+1)
	copy(next, m.identities)
	index := -1
	for i, v := range next {
		if v.Same(identity.Name, identity.ExternalID) {
			index = i
			break
		}
	}
	created := index < 0
	if created {
		identity.Descriptors = []model.Descriptor{descriptor.Clone()}
		next = append(next, identity)
		index = len(next) - 1
	} else {
		descriptors := make([]model.Descriptor, len(next[index].Descriptors), len(next[index].Descriptors)+1)
		copy(descriptors, next[index].Descriptors)
		next[index].Descriptors = append(descriptors, descriptor.Clone())
	}

	if err := m.store.SaveIdentities(next); err != nil {
		return model.IdentityRef{}, false, errors.Annotate(err, "реестр не изменён")
	}
	m.identities = next
	m.version++

	ref := next[index].Ref(index)
	if created {
		m.log.Infof("зарегистрирована персона %s (%s)", ref.Name, ref.ExternalID)
	} else {
		m.log.Infof("персоне %s (%s) добавлен дескриптор, всего %d", ref.Name, ref.ExternalID, ref.Descriptors)
	}
	return ref, created, nil
}

// Remove удаляет персону с номером index вместе со всеми её дескрипторами
func (m *Registry) Remove(index int) (model.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.identities) {
		return model.Identity{}, errors.NotFoundf("персона с номером %d", index)
	}
	removed := m.identities[index]
	next := make([]model.Identity, 0, len(m.identities)-1)
	next = append(next, m.identities[:index]...)
	next = append(next, m.identities[index+1:]...)

	if err := m.store.SaveIdentities(next); err != nil {
		return model.Identity{}, errors.Annotate(err, "реестр не изменён")
	}
	m.identities = next
	m.version++

	m.log.Infof("удалена персона %s (%s)", removed.Name, removed.ExternalID)
	return removed, nil
}

// Find номер персоны с именем name и идентификатором externalID. Сравнение без учёта
// пробелов по краям
func (m *Registry) Find(name, externalID string) (int, bool) {
	name, externalID = strings.TrimSpace(name), strings.TrimSpace(externalID)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i, v := range m.identities {
		if v.Same(name, externalID) {
			return i, true
		}
	}
	return 0, false
}

// List персоны в порядке регистрации
func (m *Registry) List() []model.IdentityRef {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]model.IdentityRef, 0, len(m.identities))
	for i, v := range m.identities {
		res = append(res, v.Ref(i))
	}
	return res
}

// Snapshot текущий реестр и его версия. Возвращаемый срез не изменяется и не должен
// изменяться вызывающей стороной
func (m *Registry) Snapshot() ([]model.Identity, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identities, m.version
}
