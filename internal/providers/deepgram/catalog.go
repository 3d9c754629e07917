package deepgram

import (
	"context"

	"sttbridge/internal/domain"
)

// nova2Locales is the language set advertised for the nova-2 model family.
var nova2Locales = []domain.LocaleDescriptor{
	{ID: "en-US", Name: "English (United States)"},
	{ID: "en-GB", Name: "English (United Kingdom)"},
	{ID: "en-AU", Name: "English (Australia)"},
	{ID: "en-IN", Name: "English (India)"},
	{ID: "de-DE", Name: "Deutsch (Deutschland)"},
	{ID: "es-ES", Name: "Español (España)"},
	{ID: "es-419", Name: "Español (Latinoamérica)"},
	{ID: "fr-FR", Name: "Français (France)"},
	{ID: "fr-CA", Name: "Français (Canada)"},
	{ID: "hi-IN", Name: "हिन्दी (भारत)"},
	{ID: "it-IT", Name: "Italiano (Italia)"},
	{ID: "ja-JP", Name: "日本語(日本)"},
	{ID: "ko-KR", Name: "한국어(대한민국)"},
	{ID: "nl-NL", Name: "Nederlands (Nederland)"},
	{ID: "pt-BR", Name: "Português (Brasil)"},
	{ID: "ru-RU", Name: "Русский (Россия)"},
	{ID: "sv-SE", Name: "Svenska (Sverige)"},
	{ID: "uk-UA", Name: "Українська (Україна)"},
	{ID: "zh-CN", Name: "中文(中国)"},
}

func (p *Provider) SupportedLocales(_ context.Context) ([]domain.LocaleDescriptor, error) {
	out := make([]domain.LocaleDescriptor, len(nova2Locales))
	copy(out, nova2Locales)
	return out, nil
}

// InstalledLocales mirrors the supported set: Deepgram models are hosted, so
// nothing is ever missing locally.
func (p *Provider) InstalledLocales(ctx context.Context) ([]string, error) {
	supported, err := p.SupportedLocales(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(supported))
	for i, d := range supported {
		ids[i] = d.ID
	}
	return ids, nil
}

func (p *Provider) Install(_ context.Context, _ string, progress func(percent int)) error {
	if progress != nil {
		progress(100)
	}
	return nil
}
