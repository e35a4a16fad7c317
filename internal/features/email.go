package features

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/jaytaylor/html2text"

	"github.com/trustnet/trustnet-go/internal/lexicon"
)

// Email feature names.
const (
	EmailLength       = "length"
	WordCount         = "word_count"
	SentenceCount     = "sentence_count"
	AvgWordLength     = "avg_word_length"
	AvgSentenceLength = "avg_sentence_length"
	ExclamationCount  = "exclamation_count"
	QuestionCount     = "question_count"
	CapsRatio         = "caps_ratio"
	EmailDigitRatio   = "digit_ratio"
	EmailSpecialRatio = "special_char_ratio"
	WhitespaceRatio   = "whitespace_ratio"
	UrgentWords       = "urgent_words"
	ThreatWords       = "threat_words"
	ActionWords       = "action_words"
	MoneyWords        = "money_words"
	SecurityWords     = "security_words"
	HasLinks          = "has_links"
	HasEmailAddresses = "has_email_addresses"
	HasPhoneNumbers   = "has_phone_numbers"
	HasAttachments    = "has_attachments"
	HasHTML           = "has_html"
	UniqueWordRatio   = "unique_word_ratio"
	PunctuationRatio  = "punctuation_ratio"
	ReadabilityScore  = "readability_score"
)

// EmailSchema is the ordered email feature schema.
var EmailSchema = newSchema(KindEmail,
	EmailLength, WordCount, SentenceCount, AvgWordLength, AvgSentenceLength,
	ExclamationCount, QuestionCount, CapsRatio, EmailDigitRatio, EmailSpecialRatio,
	WhitespaceRatio,
	UrgentWords, ThreatWords, ActionWords, MoneyWords, SecurityWords,
	HasLinks, HasEmailAddresses, HasPhoneNumbers, HasAttachments, HasHTML,
	UniqueWordRatio, PunctuationRatio, ReadabilityScore,
)

// lexiconFeature maps each email lexicon to its count feature.
var lexiconFeature = map[lexicon.EmailLabel]string{
	lexicon.Urgent:   UrgentWords,
	lexicon.Threat:   ThreatWords,
	lexicon.Action:   ActionWords,
	lexicon.Money:    MoneyWords,
	lexicon.Security: SecurityWords,
}

var (
	linkPattern    = regexp.MustCompile(`https?://[^\s<>"']+`)
	addressPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	sentenceSplit  = regexp.MustCompile(`[.!?]+`)
	htmlTagPattern = regexp.MustCompile(`(?i)<\s*(html|head|body|div|p|a|br|table|span|img|font|style)\b[^>]*>`)
)

// Email is the text of a message to score.
type Email struct {
	Subject     string
	Body        string
	Attachments int
}

// FullText joins subject and body the way every email feature sees them.
func (e Email) FullText() string {
	return strings.TrimSpace(e.Subject + " " + e.Body)
}

// ExtractEmail computes the email feature vector. HTML bodies are reduced to
// text before counting; has_html still reflects the raw input.
func ExtractEmail(e Email) Vector {
	raw := e.FullText()
	b := EmailSchema.builder()

	isHTML := htmlTagPattern.MatchString(raw)
	text := raw
	if isHTML {
		if plain, err := html2text.FromString(raw, html2text.Options{}); err == nil {
			text = plain
		}
	}
	b.setBool(HasHTML, isHTML)

	n := len([]rune(text))
	words := strings.Fields(text)
	sentences := 0
	for _, s := range sentenceSplit.Split(text, -1) {
		if strings.TrimSpace(s) != "" {
			sentences++
		}
	}

	b.setInt(EmailLength, n)
	b.setInt(WordCount, len(words))
	b.setInt(SentenceCount, sentences)
	b.set(AvgSentenceLength, ratio(len(words), sentences))
	if len(words) > 0 {
		chars := 0
		unique := make(map[string]struct{}, len(words))
		for _, w := range words {
			chars += len([]rune(w))
			unique[strings.ToLower(w)] = struct{}{}
		}
		b.set(AvgWordLength, ratio(chars, len(words)))
		b.set(UniqueWordRatio, ratio(len(unique), len(words)))
	}

	b.setInt(ExclamationCount, strings.Count(text, "!"))
	b.setInt(QuestionCount, strings.Count(text, "?"))
	b.set(CapsRatio, ratio(countRunes(text, unicode.IsUpper), n))
	b.set(EmailDigitRatio, ratio(countRunes(text, unicode.IsDigit), n))
	b.set(EmailSpecialRatio, ratio(countRunes(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
	}), n))
	b.set(WhitespaceRatio, ratio(countRunes(text, unicode.IsSpace), n))
	b.set(PunctuationRatio, ratio(countRunes(text, unicode.IsPunct), n))

	tokens := letterTokens(text)
	for _, label := range lexicon.EmailLabels {
		b.setInt(lexiconFeature[label], countTokenPrefixes(tokens, lexicon.Email(label)))
	}

	b.setInt(HasLinks, len(linkPattern.FindAllString(text, -1)))
	b.setInt(HasEmailAddresses, len(addressPattern.FindAllString(text, -1)))
	b.setInt(HasPhoneNumbers, countPhoneNumbers(text))
	b.setBool(HasAttachments, e.Attachments > 0 || strings.Contains(strings.ToLower(text), "attach"))
	b.set(ReadabilityScore, fleschReadingEase(tokens, sentences))
	return b.vector()
}
