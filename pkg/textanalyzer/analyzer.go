// Package textanalyzer turns free text into search tokens for the full-text
// index of the graph store.
package textanalyzer

import (
	"fmt"
	"regexp"
	"strings"
)

// Analyzer turns a text into the tokens that are indexed and matched.
type Analyzer interface {
	Analyze(text string) []string
}

// tokenizerRegex matches runs of letters or digits in any script.
var tokenizerRegex = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Tokenize splits text into lower-case words.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	return tokenizerRegex.FindAllString(text, -1)
}

var englishStopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "he": {}, "in": {}, "is": {}, "it": {}, "its": {},
	"of": {}, "on": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {}, "will": {}, "with": {},
}

var italianStopWords = map[string]struct{}{
	"a": {}, "ad": {}, "al": {}, "allo": {}, "ai": {}, "agli": {}, "all": {}, "agl": {}, "alla": {}, "alle": {},
	"con": {}, "col": {}, "coi": {}, "da": {}, "dal": {}, "dallo": {}, "dai": {}, "dagli": {}, "dall": {}, "dagl": {}, "dalla": {}, "dalle": {},
	"di": {}, "del": {}, "dello": {}, "dei": {}, "degli": {}, "dell": {}, "degl": {}, "della": {}, "delle": {},
	"e": {}, "ed": {}, "in": {}, "nel": {}, "nello": {}, "nei": {}, "negli": {}, "nell": {}, "negl": {}, "nella": {}, "nelle": {},
	"su": {}, "sul": {}, "sullo": {}, "sui": {}, "sugli": {}, "sull": {}, "sugl": {}, "sulla": {}, "sulle": {},
	"per": {}, "tra": {}, "contro": {}, "io": {}, "tu": {}, "lui": {}, "lei": {}, "noi": {}, "voi": {}, "loro": {},
	"mio": {}, "mia": {}, "miei": {}, "mie": {}, "tuo": {}, "tua": {}, "tuoi": {}, "tue": {}, "suo": {}, "sua": {}, "suoi": {}, "sue": {},
	"nostro": {}, "nostra": {}, "nostri": {}, "nostre": {}, "vostro": {}, "vostra": {}, "vostri": {}, "vostre": {},
	"mi": {}, "ti": {}, "ci": {}, "vi": {}, "lo": {}, "la": {}, "li": {}, "le": {}, "gli": {}, "ne": {},
	"il": {}, "un": {}, "uno": {}, "una": {}, "ma": {}, "se": {}, "perché": {}, "anche": {}, "come": {},
	"dov": {}, "dove": {}, "che": {}, "chi": {}, "cui": {}, "non": {}, "più": {}, "quale": {}, "quanto": {}, "quanti": {},
	"quanta": {}, "quante": {}, "quello": {}, "quelli": {}, "quella": {}, "quelle": {}, "questo": {}, "questi": {},
	"questa": {}, "queste": {}, "si": {}, "ho": {}, "hai": {}, "ha": {}, "abbiamo": {}, "avete": {}, "hanno": {},
	"abbia": {}, "abbiate": {}, "abbiano": {}, "avrò": {}, "avrai": {}, "avrà": {}, "avremo": {}, "avrete": {}, "avranno": {},
	"avrei": {}, "avresti": {}, "avrebbe": {}, "avremmo": {}, "avreste": {}, "avrebbero": {}, "avevo": {}, "avevi": {},
	"aveva": {}, "avevamo": {}, "avevate": {}, "avevano": {}, "ebbi": {}, "avesti": {}, "ebbe": {}, "avemmo": {},
	"aveste": {}, "ebbero": {}, "fui": {}, "fosti": {}, "fu": {}, "fummo": {}, "foste": {}, "furono": {},
	"ero": {}, "eri": {}, "era": {}, "eravamo": {}, "eravate": {}, "erano": {}, "sarei": {}, "saresti": {},
	"sarebbe": {}, "saremmo": {}, "sareste": {}, "sarebbero": {}, "sono": {}, "sei": {}, "è": {}, "siamo": {},
	"siete": {}, "sia": {}, "siate": {}, "siano": {}, "sto": {}, "stai": {}, "sta": {}, "stiamo": {}, "state": {}, "stanno": {},
}

// StopWordAnalyzer tokenizes and drops the stop words of one language.
type StopWordAnalyzer struct {
	stopWords map[string]struct{}
}

// Analyze implements Analyzer.
func (a *StopWordAnalyzer) Analyze(text string) []string {
	return FilterStopWords(Tokenize(text), a.stopWords)
}

// New returns the analyzer for a language. The empty language keeps every
// token.
func New(language string) (Analyzer, error) {
	switch strings.ToLower(language) {
	case "", "none":
		return &StopWordAnalyzer{}, nil
	case "english", "en":
		return &StopWordAnalyzer{stopWords: englishStopWords}, nil
	case "italian", "it":
		return &StopWordAnalyzer{stopWords: italianStopWords}, nil
	default:
		return nil, fmt.Errorf("unsupported text language %q", language)
	}
}

// FilterStopWords removes the tokens present in stopWords.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	if len(stopWords) == 0 {
		return tokens
	}
	filtered := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStopWord := stopWords[token]; !isStopWord {
			filtered = append(filtered, token)
		}
	}
	return filtered
}
