package models

import (
	"encoding/json"
	"fmt"
)

// ContentType перечисляет виды учебного контента, к которым применяются правила доступа.
type ContentType string

// Поддерживаемые виды контента.
const (
	ContentFreeNotes    ContentType = "FREE_NOTES"
	ContentPremiumNotes ContentType = "PREMIUM_NOTES"
	ContentUltraPDF     ContentType = "ULTRA_PDF"
	ContentVideoLecture ContentType = "VIDEO_LECTURE"
	ContentMCQPractice  ContentType = "MCQ_PRACTICE"
	ContentAINotes      ContentType = "AI_NOTES"
)

// Valid проверяет, что тип контента известен движку.
func (t ContentType) Valid() bool {
	switch t {
	case ContentFreeNotes, ContentPremiumNotes, ContentUltraPDF,
		ContentVideoLecture, ContentMCQPractice, ContentAINotes:
		return true
	}
	return false
}

// ContentKey однозначно идентифицирует каталожную запись:
// (board, classLevel, stream?, subject, chapter). Stream участвует в ключе
// только для классов 11 и 12.
type ContentKey struct {
	Board      string `json:"board" validate:"required"`
	ClassLevel string `json:"class_level" validate:"required"`
	Stream     string `json:"stream,omitempty"`
	Subject    string `json:"subject" validate:"required"`
	ChapterID  string `json:"chapter_id" validate:"required"`
}

// String собирает составной ключ каталога. Ключ инъективен: разные
// дескрипторы не могут дать одинаковую строку.
func (k ContentKey) String() string {
	streamPart := ""
	if k.ClassLevel == "11" || k.ClassLevel == "12" {
		streamPart = "-" + k.Stream
	}
	return fmt.Sprintf("content:%s:%s%s:%s:%s", k.Board, k.ClassLevel, streamPart, k.Subject, k.ChapterID)
}

// TypeKey возвращает ключ записи, специфичной для одного типа контента
// (исторический формат, используется для AI-контента).
func (k ContentKey) TypeKey(t ContentType) string {
	return k.String() + ":" + string(t)
}

// Цены по умолчанию, применяются когда каталожная запись не задаёт свою.
const (
	DefaultPremiumNotesPrice = 5
	DefaultUltraPDFPrice     = 10
	DefaultVideoPrice        = 5
)

// CatalogRecord хранит загруженный админом или сгенерированный контент главы.
// Отсутствие поля означает, что этот вид контента для главы не существует —
// это не то же самое, что цена 0 (существует и бесплатен). Ядро запись
// не изменяет, только читает.
type CatalogRecord struct {
	FreeNotesHTML    string   `json:"free_notes_html,omitempty"`
	PremiumNotesHTML string   `json:"premium_notes_html,omitempty"`
	UltraPDFLink     string   `json:"ultra_pdf_link,omitempty"`
	FreeVideoLink    string   `json:"free_video_link,omitempty"`
	PremiumVideoLink string   `json:"premium_video_link,omitempty"`
	VideoPlaylist    []string `json:"video_playlist,omitempty"`
	MCQData          string   `json:"mcq_data,omitempty"`
	AINotes          string   `json:"ai_notes,omitempty"`

	Price        *int `json:"price,omitempty"`
	VideoCredits *int `json:"video_credits,omitempty"`

	Extensions map[string]json.RawMessage `json:"extensions,omitempty"`
}

// Payload возвращает полезную нагрузку и действующую цену для запрошенного
// типа контента. ok равен false, когда контент этого типа не загружен.
func (r *CatalogRecord) Payload(t ContentType) (payload string, price int, ok bool) {
	if r == nil {
		return "", 0, false
	}
	switch t {
	case ContentFreeNotes:
		return r.FreeNotesHTML, 0, r.FreeNotesHTML != ""
	case ContentPremiumNotes:
		return r.PremiumNotesHTML, priceOr(r.Price, DefaultPremiumNotesPrice), r.PremiumNotesHTML != ""
	case ContentUltraPDF:
		return r.UltraPDFLink, priceOr(r.Price, DefaultUltraPDFPrice), r.UltraPDFLink != ""
	case ContentVideoLecture:
		link := r.PremiumVideoLink
		if link == "" {
			link = r.FreeVideoLink
		}
		exists := link != "" || len(r.VideoPlaylist) > 0
		return link, priceOr(r.VideoCredits, DefaultVideoPrice), exists
	case ContentMCQPractice:
		return r.MCQData, priceOr(r.Price, 0), r.MCQData != ""
	case ContentAINotes:
		return r.AINotes, priceOr(r.Price, 0), r.AINotes != ""
	}
	return "", 0, false
}

func priceOr(p *int, def int) int {
	if p != nil {
		return *p
	}
	return def
}
