package vergilevhasi

import "strings"

const (
	// VKNLength is the length of a corporate tax id (Vergi Kimlik No).
	VKNLength = 10
	// TCKNLength is the length of a personal id (TC Kimlik No), which
	// individual taxpayers use as their tax id.
	TCKNLength = 11
)

// NormalizeTaxID drops every non-digit rune from s and accepts the result only
// when it is 10 or 11 digits long.
func NormalizeTaxID(s string) (string, bool) {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < VKNLength || len(digits) > TCKNLength {
		return "", false
	}
	return digits, true
}

// ValidTaxID checks the check digits of a normalized tax id: the GİB algorithm
// for 10-digit VKNs and the TC Kimlik algorithm for 11-digit ids. It is only
// informational; extraction does not reject ids that fail it.
func ValidTaxID(id string) bool {
	switch len(id) {
	case VKNLength:
		return validVKN(id)
	case TCKNLength:
		return validTCKN(id)
	default:
		return false
	}
}

func digitsOf(s string) ([]int, bool) {
	d := make([]int, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return nil, false
		}
		d[i] = int(s[i] - '0')
	}
	return d, true
}

func validVKN(vkn string) bool {
	d, ok := digitsOf(vkn)
	if !ok || len(d) != VKNLength {
		return false
	}
	sum := 0
	for i := 0; i < 9; i++ {
		tmp := (d[i] + 9 - i) % 10
		v := (tmp * (1 << (9 - i))) % 9
		if tmp != 0 && v == 0 {
			v = 9
		}
		sum += v
	}
	return d[9] == (10-sum%10)%10
}

func validTCKN(tckn string) bool {
	d, ok := digitsOf(tckn)
	if !ok || len(d) != TCKNLength || d[0] == 0 {
		return false
	}
	odd := d[0] + d[2] + d[4] + d[6] + d[8]
	even := d[1] + d[3] + d[5] + d[7]
	// Go's % keeps the sign of the dividend
	tenth := ((odd*7-even)%10 + 10) % 10
	if d[9] != tenth {
		return false
	}
	total := 0
	for i := 0; i < 10; i++ {
		total += d[i]
	}
	return d[10] == total%10
}
