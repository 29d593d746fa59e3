package vergilevhasi

import (
	"sort"
	"strings"
)

// DefaultDenylistEntries are the boilerplate headers and labels printed on a
// tax plate. Misspellings are what OCR engines commonly return for the
// Turkish originals.
var DefaultDenylistEntries = []string{
	"GELİR İDARESİ",
	"VERGİ LEVHASI",
	"BAŞKANLIĞI",
	"Bagkanlign",
	"MÜKELLEFİN",
	"VERGİ",
	"DAİRESİ",
	"NO",
	"ADI SOYADI",
	"TC KİMLİK NO",
	"TİCARET ÜNVANI",
	"TİCARET ONVANI",
	"TİCARİ ÜNVAN",
	"VERGİ KİMLİK",
	"VERGİ KİMLİK NO",
	"VERGİ DAİRESİ",
}

// Denylist removes known boilerplate from recognized text. Entries are matched
// on folded tokens: single-word entries remove any equal token, multi-word
// entries remove an equal run of consecutive tokens.
type Denylist struct {
	tokens  map[string]struct{}
	phrases [][]string
}

// NewDenylist builds a Denylist from entries. Blank entries are ignored.
func NewDenylist(entries ...string) *Denylist {
	d := &Denylist{tokens: make(map[string]struct{})}
	for _, e := range entries {
		words := foldTokens(strings.Fields(e))
		switch len(words) {
		case 0:
			continue
		case 1:
			if words[0] != "" {
				d.tokens[words[0]] = struct{}{}
			}
		default:
			d.phrases = append(d.phrases, words)
		}
	}
	// longest phrase wins when several start at the same token
	sort.SliceStable(d.phrases, func(i, j int) bool {
		return len(d.phrases[i]) > len(d.phrases[j])
	})
	return d
}

// DefaultDenylist is built from DefaultDenylistEntries.
var DefaultDenylist = NewDenylist(DefaultDenylistEntries...)

// Clean removes every denylisted phrase and token from s and returns the
// remaining tokens, in their original spelling, joined by single spaces.
// Removal repeats until nothing changes, so a phrase formed by removing the
// text between its parts is removed as well.
func (d *Denylist) Clean(s string) string {
	tokens := strings.Fields(s)
	for {
		kept, changed := d.cleanPass(tokens)
		tokens = kept
		if !changed {
			break
		}
	}
	return strings.Join(tokens, " ")
}

func (d *Denylist) cleanPass(tokens []string) ([]string, bool) {
	folded := foldTokens(tokens)
	kept := make([]string, 0, len(tokens))
	changed := false
	for i := 0; i < len(tokens); {
		if folded[i] == "" {
			// punctuation only
			i++
			changed = true
			continue
		}
		if n := d.phraseAt(folded, i); n > 0 {
			i += n
			changed = true
			continue
		}
		if _, ok := d.tokens[folded[i]]; ok {
			i++
			changed = true
			continue
		}
		kept = append(kept, tokens[i])
		i++
	}
	return kept, changed
}

// phraseAt returns the length of the longest phrase matching folded at i.
func (d *Denylist) phraseAt(folded []string, i int) int {
	for _, p := range d.phrases {
		if i+len(p) > len(folded) {
			continue
		}
		match := true
		for j, w := range p {
			if folded[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return len(p)
		}
	}
	return 0
}

// Contains reports whether s still holds a denylisted token or phrase.
func (d *Denylist) Contains(s string) bool {
	folded := foldTokens(strings.Fields(s))
	for i, tok := range folded {
		if _, ok := d.tokens[tok]; ok {
			return true
		}
		if d.phraseAt(folded, i) > 0 {
			return true
		}
	}
	return false
}

// IsEmpty reports whether nothing is left of s after cleaning.
func (d *Denylist) IsEmpty(s string) bool {
	return d.Clean(s) == ""
}
