package locale

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed messages/*.toml
var messages embed.FS

var DefaultLanguage = language.BrazilianPortuguese

type Translator struct {
	bundle *i18n.Bundle
}

// New loads the embedded message files.
func New() (*Translator, error) {
	bundle := i18n.NewBundle(DefaultLanguage)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	files, err := fs.Glob(messages, "messages/*.toml")
	if err != nil {
		return nil, err
	}
	for _, name := range files {
		data, err := messages.ReadFile(name)
		if err != nil {
			return nil, err
		}
		if _, err := bundle.ParseMessageFileBytes(data, name); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
	}
	return &Translator{bundle: bundle}, nil
}

func MustNew() *Translator {
	t, err := New()
	if err != nil {
		panic(err)
	}
	return t
}

// T translates id for lang, falling back to the default language and then to
// the id itself.
func (t *Translator) T(lang, id string, data map[string]interface{}) string {
	if id == "" {
		return ""
	}
	localizer := i18n.NewLocalizer(t.bundle, lang, DefaultLanguage.String())
	text, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
	if err != nil {
		return id
	}
	return text
}

// FormatBRL renders an amount in centavos as Brazilian reais.
func FormatBRL(cents int64, lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = DefaultLanguage
	}
	amount := currency.BRL.Amount(float64(cents) / 100)
	return message.NewPrinter(tag).Sprint(currency.Symbol(amount))
}
