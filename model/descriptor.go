package model

// DescriptorSize размер дескриптора лица, который выдаёт кодировщик по умолчанию
const DescriptorSize = 128

// Descriptor дескриптор лица: вектор фиксированной длины, полученный от внешнего кодировщика
type Descriptor []float64

// Len длина дескриптора
func (m Descriptor) Len() int {
	return len(m)
}

// IsEmpty дескриптор не заполнен
func (m Descriptor) IsEmpty() bool {
	return len(m) == 0
}

// Clone копия дескриптора, не разделяющая с ним память
func (m Descriptor) Clone() Descriptor {
	if m == nil {
		return nil
	}
	res := make(Descriptor, len(m))
	copy(res, m)
	return res
}

// Float32 преобразование для индексов, работающих с float32
func (m Descriptor) Float32() []float32 {
	res := make([]float32, len(m))
	for i, v := range m {
		res[i] = float32(v)
	}
	return res
}
