package core

import (
	"github.com/go-playground/locales"
	"github.com/go-playground/locales/ar"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/pkg/errors"
)

// Catalog holds the localized messages of the app, keyed by locale then message key.
// Texts use universal-translator placeholders: "{0}", "{1}"...
type Catalog struct {
	uni           *ut.UniversalTranslator
	defaultLocale string
}

// NewTranslator returns the english translator used for validation errors.
func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// NewCatalog registers messages for the supported locales (ar, en).
// defaultLocale is used whenever a requested locale is missing.
func NewCatalog(defaultLocale string, messages map[string]map[string]string) (*Catalog, error) {
	supported := map[string]locales.Translator{"ar": ar.New(), "en": en.New()}

	fallback, ok := supported[defaultLocale]
	if !ok {
		return nil, errors.Errorf("unsupported default locale %q", defaultLocale)
	}
	uni := ut.New(fallback, supported["ar"], supported["en"])

	for locale, texts := range messages {
		trans, found := uni.GetTranslator(locale)
		if !found {
			return nil, errors.Errorf("unsupported locale %q", locale)
		}
		for key, text := range texts {
			if err := trans.Add(key, text, false); err != nil {
				return nil, errors.Wrapf(err, "adding %s message %q", locale, key)
			}
		}
	}
	return &Catalog{uni: uni, defaultLocale: defaultLocale}, nil
}

func (c *Catalog) DefaultLocale() string {
	return c.defaultLocale
}

// T translates key in locale, falling back to the default locale, then to the key itself.
func (c *Catalog) T(locale, key string, params ...string) string {
	if locale == "" {
		locale = c.defaultLocale
	}
	trans, _ := c.uni.GetTranslator(locale)
	if s, err := trans.T(key, params...); err == nil {
		return s
	}
	if trans, found := c.uni.GetTranslator(c.defaultLocale); found {
		if s, err := trans.T(key, params...); err == nil {
			return s
		}
	}
	return key
}
