package matcher

import (
	"context"
	"math"
	"strings"

	"github.com/kirsrus/attendance/server/controller"
	"github.com/kirsrus/attendance/server/model"
	"github.com/kirsrus/attendance/server/pkg/logger"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
)

// Strategy правило выбора персоны среди дескрипторов в пределах порога
type Strategy int

const (
	// StrategyFirst первый в порядке регистрации дескриптор в пределах порога
	StrategyFirst Strategy = iota
	// StrategyNearest ближайший дескриптор в пределах порога. При равенстве - зарегистрированный раньше
	StrategyNearest
)

func (m Strategy) String() string {
	if m == StrategyNearest {
		return "nearest"
	}
	return "first"
}

// ParseStrategy стратегия по имени. Пустое имя - StrategyFirst
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first":
		return StrategyFirst, nil
	case "nearest":
		return StrategyNearest, nil
	}
	return StrategyFirst, errors.NotValidf("стратегия %q", s)
}

// Matcher точное сопоставление дескриптора с каждым дескриптором реестра. Инициируется через NewMatcher
type Matcher struct {
	ctx      context.Context
	log      *logrus.Entry
	metric   Metric
	strategy Strategy
}

// ConfigMatcher конфигурация Matcher
type ConfigMatcher struct {
	Log      *logrus.Logger
	Metric   Metric
	Strategy Strategy
}

// NewMatcher конструктор Matcher
func NewMatcher(ctx context.Context, config *ConfigMatcher) (*Matcher, error) {
	if config == nil {
		return nil, errors.New("не установлен config")
	}
	if config.Log == nil {
		config.Log = logger.Discard()
	}
	matcher := Matcher{
		ctx: ctx,
		log: config.Log.WithFields(map[string]interface{}{
			"module": "matcher",
			"scope":  "controller",
		}),
		metric:   config.Metric,
		strategy: config.Strategy,
	}
	matcher.log.Debugf("метрика %s, стратегия %s", matcher.metric, matcher.strategy)
	return &matcher, nil
}

var _ controller.MatcherCtl = (*Matcher)(nil)

// Match сопоставляет probe с реестром roster. Персона найдена, если расстояние до одного из её
// дескрипторов не больше tolerance
func (m *Matcher) Match(probe model.Descriptor, roster controller.Roster, tolerance float64) (model.Match, bool) {
	identities, _ := roster.Snapshot()
	return m.MatchIdentities(probe, identities, tolerance)
}

// MatchIdentities сопоставление с готовым списком персон
func (m *Matcher) MatchIdentities(probe model.Descriptor, identities []model.Identity, tolerance float64) (model.Match, bool) {
	if probe.IsEmpty() || !(tolerance >= 0) {
		return model.Match{}, false
	}

	var best model.Match
	found := false
	for i, identity := range identities {
		for _, d := range identity.Descriptors {
			distance := m.metric.Distance(probe, d)
			if math.IsNaN(distance) || distance > tolerance {
				continue
			}
			if m.strategy == StrategyFirst {
				return model.Match{Ref: identity.Ref(i), Distance: distance}, true
			}
			if !found || distance < best.Distance {
				best = model.Match{Ref: identity.Ref(i), Distance: distance}
				found = true
			}
		}
	}
	return best, found
}

// Roster неизменяемый список персон как источник реестра
type Roster []model.Identity

// Snapshot список персон. Версия всегда 0
func (m Roster) Snapshot() ([]model.Identity, uint64) {
	return m, 0
}
