package model

// Identity зарегистрированная персона с одним или несколькими дескрипторами лица
type Identity struct {
	Name        string `conform:"trim" validate:"required"`
	ExternalID  string `conform:"trim" validate:"required"`
	Descriptors []Descriptor
}

// Same проверяет, что персона имеет то же имя и внешний идентификатор
func (m Identity) Same(name, externalID string) bool {
	return m.Name == name && m.ExternalID == externalID
}

// Ref краткое описание персоны с её позицией в реестре
func (m Identity) Ref(index int) IdentityRef {
	return IdentityRef{
		Index:       index,
		Name:        m.Name,
		ExternalID:  m.ExternalID,
		Descriptors: len(m.Descriptors),
	}
}

// IdentityRef ссылка на персону в реестре (без дескрипторов)
type IdentityRef struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	ExternalID  string `json:"external_id"`
	Descriptors int    `json:"descriptors"`
}

// Match результат сопоставления пробы с реестром
type Match struct {
	Ref      IdentityRef
	Distance float64
}
