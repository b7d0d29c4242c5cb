package file

import (
	"bytes"
	"encoding/gob"
	"io/ioutil"
	"os"

	"github.com/kirsrus/attendance/server/model"

	"github.com/google/renameio"
	"github.com/juju/errors"
)

// facesBlob формат файла реестра: три параллельных последовательности, одна строка на дескриптор
type facesBlob struct {
	Encodings [][]float64
	Names     []string
	IDs       []string
}

// LoadIdentities читает реестр из файла. Строки одной персоны (имя и идентификатор) объединяются
// в порядке первого появления
func (m *Files) LoadIdentities() ([]model.Identity, error) {
	content, err := ioutil.ReadFile(m.facesFile)
	if err != nil {
		if os.IsNotExist(err) {
			m.log.Infof("файл реестра %s не найден, реестр пуст", m.facesFile)
			return []model.Identity{}, nil
		}
		return nil, errors.Annotatef(err, "ошибка чтения %s", m.facesFile)
	}
	if len(content) == 0 {
		return []model.Identity{}, nil
	}

	var blob facesBlob
	if err := gob.NewDecoder(bytes.NewReader(content)).Decode(&blob); err != nil {
		return nil, model.NewCorruptState(m.facesFile, err)
	}
	if len(blob.Encodings) != len(blob.Names) || len(blob.Names) != len(blob.IDs) {
		return nil, model.NewCorruptState(m.facesFile, errors.Errorf("разная длина последовательностей: %d/%d/%d",
			len(blob.Encodings), len(blob.Names), len(blob.IDs)))
	}

	res := make([]model.Identity, 0)
	index := make(map[[2]string]int)
	for i, enc := range blob.Encodings {
		if len(enc) == 0 {
			return nil, model.NewCorruptState(m.facesFile, errors.Errorf("пустой дескриптор в строке %d", i))
		}
		key := [2]string{blob.Names[i], blob.IDs[i]}
		pos, ok := index[key]
		if !ok {
			pos = len(res)
			index[key] = pos
			res = append(res, model.Identity{Name: blob.Names[i], ExternalID: blob.IDs[i]})
		}
		res[pos].Descriptors = append(res[pos].Descriptors, model.Descriptor(enc))
	}
	return res, nil
}

// SaveIdentities атомарно заменяет файл реестра
func (m *Files) SaveIdentities(identities []model.Identity) error {
	blob := facesBlob{
		Encodings: make([][]float64, 0),
		Names:     make([]string, 0),
		IDs:       make([]string, 0),
	}
	for _, v := range identities {
		for _, d := range v.Descriptors {
			blob.Encodings = append(blob.Encodings, []float64(d))
			blob.Names = append(blob.Names, v.Name)
			blob.IDs = append(blob.IDs, v.ExternalID)
		}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(blob); err != nil {
		return errors.Annotate(err, "ошибка кодирования реестра")
	}
	if err := renameio.WriteFile(m.facesFile, buf.Bytes(), 0644); err != nil {
		return errors.Annotatef(err, "ошибка записи %s", m.facesFile)
	}
	m.log.Debugf("реестр сохранён: персон %d, дескрипторов %d", len(identities), len(blob.Encodings))
	return nil
}

// ResetIdentities откладывает нечитаемый файл реестра
func (m *Files) ResetIdentities() error {
	return errors.Trace(quarantine(m.log, m.facesFile))
}
