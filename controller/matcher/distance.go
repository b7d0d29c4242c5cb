package matcher

import (
	"math"
	"strings"

	"github.com/juju/errors"
)

// Metric метрика расстояния между дескрипторами
type Metric int

const (
	// Euclidean евклидово расстояние (метрика кодировщиков dlib)
	Euclidean Metric = iota
	// Cosine косинусное расстояние, от 0 (совпадают) до 2 (противоположны)
	Cosine
)

func (m Metric) String() string {
	if m == Cosine {
		return "cosine"
	}
	return "euclidean"
}

// ParseMetric метрика по имени. Пустое имя - Euclidean
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "euclidean":
		return Euclidean, nil
	case "cosine":
		return Cosine, nil
	}
	return Euclidean, errors.NotValidf("метрика %q", s)
}

// Distance расстояние между дескрипторами a и b. Для дескрипторов разной длины
// и пустых дескрипторов +Inf
func (m Metric) Distance(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	if m == Cosine {
		return cosineDistance(a, b)
	}
	return euclideanDistance(a, b)
}

func euclideanDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func cosineDistance(a, b []float64) float64 {
	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 2.0
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Погрешность вычислений
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}
	return 1 - similarity
}
