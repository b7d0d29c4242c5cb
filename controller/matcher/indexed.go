package matcher

import (
	"context"
	"math"
	"sync"

	"github.com/kirsrus/attendance/server/controller"
	"github.com/kirsrus/attendance/server/model"
	"github.com/kirsrus/attendance/server/pkg/logger"

	"github.com/coder/hnsw"
	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
)

const (
	// Максимальное количество соседей узла графа
	indexMaxNeighbors = 16
	// Количество кандидатов, запрашиваемых у графа
	indexCandidates = 10
)

// position расположение дескриптора в реестре
type position struct {
	identity   int
	descriptor int
}

// Indexed приближённый поиск ближайшего дескриптора по графу HNSW. Инициируется через NewIndexed.
// Граф перестраивается при изменении версии реестра. Найденные кандидаты проверяются точным расстоянием
type Indexed struct {
	ctx        context.Context
	log        *logrus.Entry
	metric     Metric
	candidates int

	mu         sync.Mutex
	graph      *hnsw.Graph[int]
	positions  []position
	identities []model.Identity
	version    uint64
	dimension  int
}

// ConfigIndexed конфигурация Indexed
type ConfigIndexed struct {
	Log    *logrus.Logger
	Metric Metric
	// Количество кандидатов, запрашиваемых у графа
	Candidates int
}

// NewIndexed конструктор Indexed
func NewIndexed(ctx context.Context, config *ConfigIndexed) (*Indexed, error) {
	if config == nil {
		return nil, errors.New("не установлен config")
	}
	if config.Log == nil {
		config.Log = logger.Discard()
	}
	indexed := Indexed{
		ctx: ctx,
		log: config.Log.WithFields(map[string]interface{}{
			"module": "indexed",
			"scope":  "controller",
		}),
		metric:     config.Metric,
		candidates: indexCandidates,
	}
	if config.Candidates > 0 {
		indexed.candidates = config.Candidates
	}
	return &indexed, nil
}

var _ controller.MatcherCtl = (*Indexed)(nil)

// stale граф построен не для этого состояния реестра
func (m *Indexed) stale(identities []model.Identity, version uint64) bool {
	if m.graph == nil && m.positions == nil {
		return true
	}
	if version != m.version || len(identities) != len(m.identities) {
		return true
	}
	return len(identities) != 0 && &identities[0] != &m.identities[0]
}

// rebuild строит граф по всем дескрипторам реестра
func (m *Indexed) rebuild(identities []model.Identity, version uint64) {
	m.identities = identities
	m.version = version
	m.positions = make([]position, 0)
	m.graph = nil
	m.dimension = 0

	g := hnsw.NewGraph[int]()
	g.M = indexMaxNeighbors
	g.Ml = 1.0 / float64(indexMaxNeighbors)
	g.Distance = hnsw.EuclideanDistance
	if m.metric == Cosine {
		g.Distance = hnsw.CosineDistance
	}

	for i, identity := range identities {
		for j, d := range identity.Descriptors {
			if m.dimension == 0 {
				m.dimension = len(d)
			}
			if len(d) != m.dimension {
				m.log.Warnf("дескриптор %d персоны %s другой длины (%d), пропускаем", j, identity.Name, len(d))
				continue
			}
			g.Add(hnsw.MakeNode(len(m.positions), d.Float32()))
			m.positions = append(m.positions, position{identity: i, descriptor: j})
		}
	}
	if len(m.positions) != 0 {
		m.graph = g
	}
	m.log.Debugf("граф построен: версия %d, дескрипторов %d", version, len(m.positions))
}

// Match ближайшая персона в пределах tolerance среди кандидатов графа
func (m *Indexed) Match(probe model.Descriptor, roster controller.Roster, tolerance float64) (model.Match, bool) {
	if probe.IsEmpty() || !(tolerance >= 0) {
		return model.Match{}, false
	}
	identities, version := roster.Snapshot()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stale(identities, version) {
		m.rebuild(identities, version)
	}
	if m.graph == nil || probe.Len() != m.dimension {
		return model.Match{}, false
	}

	var best model.Match
	bestIdentity := math.MaxInt32
	found := false
	for _, node := range m.graph.Search(probe.Float32(), m.candidates) {
		pos := m.positions[node.Key]
		identity := m.identities[pos.identity]
		distance := m.metric.Distance(probe, identity.Descriptors[pos.descriptor])
		if math.IsNaN(distance) || distance > tolerance {
			continue
		}
		if !found || distance < best.Distance || (distance == best.Distance && pos.identity < bestIdentity) {
			best = model.Match{Ref: identity.Ref(pos.identity), Distance: distance}
			bestIdentity = pos.identity
			found = true
		}
	}
	return best, found
}
