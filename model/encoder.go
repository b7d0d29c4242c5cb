package model

// EncoderRequest запрос к кодировщику лиц
type EncoderRequest struct {
	// Токен
	UidRequest string `json:"uid_request"`

	// Изображение в base64
	Image string `json:"image"`
}

// EncoderResponse ответ кодировщика
type EncoderResponse struct {
	// Токен
	UidRequest string `json:"uid_request" conform:"trim" validate:"required"`

	// Найденные на изображении лица
	Faces []Face `json:"faces" validate:"dive"`

	// Сообщение об ошибке обработки изображения
	Error string `json:"error" conform:"trim"`
}

// Face лицо, найденное кодировщиком
type Face struct {
	// Положение лица [top, right, bottom, left]
	Box        [4]int     `json:"box"`
	Descriptor Descriptor `json:"descriptor" validate:"required,min=1"`
}
