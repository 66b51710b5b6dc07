// Copyright 2026 The loadx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

var (
	languageOnce  sync.Once
	languageValue string
)

// acceptLanguage returns the default Accept-Language header value for
// this process. It is computed once, from the locale environment, and
// cached for the process lifetime.
func acceptLanguage() string {
	languageOnce.Do(func() {
		languageValue = formatAcceptLanguage(preferredLanguages())
	})
	return languageValue
}

// formatAcceptLanguage renders the preferred languages as an
// Accept-Language value with descending q weights. The weight of the
// entry at index i is 1 - i/count, so the first entry always carries
// q=1.00.
func formatAcceptLanguage(languages []string) string {
	count := len(languages)
	entries := make([]string, count)
	for i, lang := range languages {
		q := 1.0 - float64(i)/float64(count)
		entries[i] = fmt.Sprintf("%s;q=%.2f", lang, q)
	}
	return strings.Join(entries, ", ")
}

// preferredLanguages derives the user's language preferences, most
// preferred first, from the POSIX locale environment. LANGUAGE holds a
// colon-separated priority list; LC_ALL, LC_MESSAGES and LANG hold a
// single locale each and are consulted in that order. If nothing
// usable is set, English is assumed.
func preferredLanguages() []string {
	if list := os.Getenv("LANGUAGE"); list != "" {
		var langs []string
		for _, entry := range strings.Split(list, ":") {
			if lang, ok := localeToLanguage(entry); ok {
				langs = append(langs, lang)
			}
		}
		if len(langs) > 0 {
			return langs
		}
	}
	for _, name := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if lang, ok := localeToLanguage(os.Getenv(name)); ok {
			return []string{lang}
		}
	}
	return []string{"en"}
}

// localeToLanguage converts a POSIX locale name such as "en_US.UTF-8"
// or "pt_BR@euro" to an HTTP language tag such as "en-US". The "C" and
// "POSIX" locales carry no language information.
func localeToLanguage(locale string) (string, bool) {
	if i := strings.IndexByte(locale, '.'); i >= 0 {
		locale = locale[:i]
	}
	if i := strings.IndexByte(locale, '@'); i >= 0 {
		locale = locale[:i]
	}
	locale = strings.TrimSpace(locale)
	if locale == "" || locale == "C" || locale == "POSIX" {
		return "", false
	}
	return strings.ReplaceAll(locale, "_", "-"), true
}
