package features

import (
	"regexp"

	"github.com/nyaruka/phonenumbers"
)

var (
	intlPhone = regexp.MustCompile(`\+\d{1,3}[\s.-]?\(?\d{1,4}\)?(?:[\s.-]?\d{2,4}){2,4}`)
	natPhone  = regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)
)

// defaultPhoneRegion is used for numbers written without a country code.
const defaultPhoneRegion = "US"

// countPhoneNumbers counts distinct plausible phone numbers in text.
// International candidates are found first; national matches inside them are
// ignored.
func countPhoneNumbers(text string) int {
	seen := make(map[string]struct{})
	var taken [][]int

	add := func(candidate string) {
		num, err := phonenumbers.Parse(candidate, defaultPhoneRegion)
		if err != nil || !phonenumbers.IsPossibleNumber(num) {
			return
		}
		seen[phonenumbers.Format(num, phonenumbers.E164)] = struct{}{}
	}

	for _, loc := range intlPhone.FindAllStringIndex(text, -1) {
		taken = append(taken, loc)
		add(text[loc[0]:loc[1]])
	}
	for _, loc := range natPhone.FindAllStringIndex(text, -1) {
		if overlaps(loc, taken) {
			continue
		}
		add(text[loc[0]:loc[1]])
	}
	return len(seen)
}

func overlaps(loc []int, spans [][]int) bool {
	for _, s := range spans {
		if loc[0] < s[1] && s[0] < loc[1] {
			return true
		}
	}
	return false
}
