package sequence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const numberPrefix = "BOL-"

// Prefix returns the manifest number prefix shared by every number issued for year.
func Prefix(year int) string {
	return fmt.Sprintf("%s%d-", numberPrefix, year)
}

// Format renders BOL-<year>-<seq>. Sequences below 1000 are padded to three
// digits; larger ones keep their natural width.
func Format(year, seq int) string {
	return fmt.Sprintf("%s%03d", Prefix(year), seq)
}

// Parse splits a yearly manifest number. Fallback numbers do not parse.
func Parse(number string) (year int, seq int, ok bool) {
	rest, found := strings.CutPrefix(number, numberPrefix)
	if !found {
		return 0, 0, false
	}
	yearPart, seqPart, found := strings.Cut(rest, "-")
	if !found || len(yearPart) != 4 || len(seqPart) < 3 {
		return 0, 0, false
	}
	if !digitsOnly(yearPart) || !digitsOnly(seqPart) {
		return 0, 0, false
	}
	year, err := strconv.Atoi(yearPart)
	if err != nil {
		return 0, 0, false
	}
	seq, err = strconv.Atoi(seqPart)
	if err != nil || seq < 1 {
		return 0, 0, false
	}
	return year, seq, true
}

// Fallback returns the out-of-band number used when the yearly sequence cannot
// be read.
func Fallback(now time.Time) string {
	return numberPrefix + strconv.FormatInt(now.UnixMilli(), 10)
}

// IsFallback reports whether number was produced by Fallback.
func IsFallback(number string) bool {
	rest, found := strings.CutPrefix(number, numberPrefix)
	return found && digitsOnly(rest)
}

func digitsOnly(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
