package services

import (
	"strings"

	"github.com/gosimple/unidecode"
	"golang.org/x/text/cases"
)

// foldForSearch makes matching case- and diacritic-insensitive
func foldForSearch(s string) string {
	return cases.Fold().String(unidecode.Unidecode(strings.TrimSpace(s)))
}

func matchesSearch(term string, fields ...string) bool {
	if term == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(foldForSearch(f), term) {
			return true
		}
	}
	return false
}
