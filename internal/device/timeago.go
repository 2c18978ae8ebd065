package device

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	keySeconds = "%d sec ago"
	keyMinutes = "%d min ago"
	keyHours   = "%d h ago"
	keyDays    = "%d d ago"
)

var (
	timeAgoLocales = []language.Tag{language.Russian, language.English}
	timeAgoCatalog = newTimeAgoCatalog()
)

func newTimeAgoCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.Russian))

	ru := map[string]string{
		keySeconds: "%d сек назад",
		keyMinutes: "%d мин назад",
		keyHours:   "%d ч назад",
		keyDays:    "%d д назад",
	}
	for key, msg := range ru {
		_ = b.SetString(language.Russian, key, msg)
	}
	for _, key := range []string{keySeconds, keyMinutes, keyHours, keyDays} {
		_ = b.SetString(language.English, key, key)
	}

	return b
}

// newPrinter returns a printer for locale, falling back to Russian for
// unknown or unsupported tags.
func newPrinter(locale string) *message.Printer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Russian
	}
	_, idx, confidence := language.NewMatcher(timeAgoLocales).Match(tag)
	if confidence == language.No {
		tag = language.Russian
	} else {
		tag = timeAgoLocales[idx]
	}
	return message.NewPrinter(tag, message.Catalog(timeAgoCatalog))
}

func formatElapsed(p *message.Printer, elapsed time.Duration) string {
	if elapsed < 0 {
		elapsed = 0
	}

	seconds := int64(elapsed / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	switch {
	case seconds < 60:
		return p.Sprintf(keySeconds, seconds)
	case minutes < 60:
		return p.Sprintf(keyMinutes, minutes)
	case hours < 24:
		return p.Sprintf(keyHours, hours)
	default:
		return p.Sprintf(keyDays, days)
	}
}

// TimeAgo renders the time elapsed since t in Russian using the coarsest
// whole unit.
func TimeAgo(t time.Time) string {
	return formatElapsed(newPrinter("ru"), time.Since(t))
}
