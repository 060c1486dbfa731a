package models

import "time"

// Provider представляет проверенного организатора каникулярных активностей.
type Provider struct {
	ID          int
	Name        string    // Название организатора
	Description string    // Краткое описание программ
	Location    string    // Город или район проведения
	Category    string    // Направление: спорт, творчество, наука и т.п.
	AgeMin      int       // Минимальный возраст детей
	AgeMax      int       // Максимальный возраст детей
	Website     string    // Сайт организатора
	Vetted      bool      // Прошёл ли ручную проверку
	CreatedAt   time.Time
}

// DummyProvider используется для приёма данных организатора из JSON-запроса
// (создание доступно только администраторам).
type DummyProvider struct {
	Name        string `json:"name" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"required,max=2000"`
	Location    string `json:"location" validate:"required,max=200"`
	Category    string `json:"category" validate:"required,max=100"`
	AgeMin      int    `json:"age_min" validate:"gte=0,lte=18"`
	AgeMax      int    `json:"age_max" validate:"gtefield=AgeMin,lte=18"`
	Website     string `json:"website" validate:"omitempty,url"`
}
