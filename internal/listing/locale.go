package listing

import (
	"fmt"
	"strings"
	"time"

	"github.com/cwarden/afisha/internal/afisha"
)

type Locale string

const (
	LocaleRU Locale = "ru"
	LocaleEN Locale = "en"
)

func ParseLocale(s string) (Locale, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ru", "ru-ru", "ru_ru":
		return LocaleRU, nil
	case "en", "en-us", "en_us", "en-gb", "en_gb":
		return LocaleEN, nil
	default:
		return LocaleRU, fmt.Errorf("unsupported locale: %s", s)
	}
}

var ruMonthsGenitive = [...]string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

// FormatDate renders a long calendar date: "1 мая 2024 г." or "May 1, 2024".
func (l Locale) FormatDate(d afisha.Date) string {
	if d.IsZero() {
		return ""
	}
	switch l {
	case LocaleEN:
		return d.Start().Format("January 2, 2006")
	default:
		return fmt.Sprintf("%d %s %d г.", d.Day, ruMonthsGenitive[d.Month-1], d.Year)
	}
}

// FormatTime renders the time of day in UTC as HH:MM.
func (l Locale) FormatTime(t time.Time) string {
	return t.UTC().Format("15:04")
}

// Messages are the status lines shown around the listing.
type Messages struct {
	Title       string
	Loading     string
	Empty       string
	NoMore      string
	FilterLabel string
	DateLabel   string
	AllDates    string
	Untitled    string
}

func (l Locale) Messages() Messages {
	if l == LocaleEN {
		return Messages{
			Title:       "Playbill",
			Loading:     "Loading...",
			Empty:       "No performances match your search.",
			NoMore:      "No more performances.",
			FilterLabel: "Filter",
			DateLabel:   "Date",
			AllDates:    "upcoming",
			Untitled:    "Untitled",
		}
	}
	return Messages{
		Title:       "Афиша",
		Loading:     "Загрузка...",
		Empty:       "Представления по вашему запросу не найдены.",
		NoMore:      "Больше нет представлений.",
		FilterLabel: "Фильтр",
		DateLabel:   "Дата",
		AllDates:    "ближайшие",
		Untitled:    "Без названия",
	}
}
