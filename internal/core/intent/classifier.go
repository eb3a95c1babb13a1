package intent

import (
	"strings"
	"unicode"

	"github.com/quicknet-il/support-bot-be/internal/models"
)

// Intent labels produced by the classifier. Template keys mirror these.
const (
	IntentGreeting    = "greeting"
	IntentThanks      = "thanks"
	IntentHours       = "hours"
	IntentLocation    = "location"
	IntentHuman       = "human"
	IntentOrderStatus = "order_status"
	IntentGoodbye     = "goodbye"
	IntentUnknown     = "unknown"
)

// Result is a classification outcome. Unknown with confidence 0 is a valid
// terminal result, not an error.
type Result struct {
	Intent     string
	Confidence float64
}

type pattern struct {
	intent  string
	phrases []string
}

// Pattern order matters: the first matching intent wins, so the more
// specific intents come before the generic ones.
var patterns = []pattern{
	{IntentHuman, []string{
		"موظف", "انسان", "بني ادم", "خدمة العملاء", "اتكلم مع حد", "عامل",
		"נציג", "בן אדם", "שירות לקוחות", "לדבר עם מישהו", "אנושי",
	}},
	{IntentOrderStatus, []string{
		"طلبي", "وين الطلب", "حالة الطلب", "الشحنة", "التوصيل",
		"ההזמנה שלי", "איפה ההזמנה", "סטטוס הזמנה", "משלוח",
	}},
	{IntentHours, []string{
		"ساعات الدوام", "ساعات العمل", "متى تفتحون", "متى بتفتحوا", "وقت الدوام",
		"שעות פתיחה", "מתי פתוחים", "שעות פעילות",
	}},
	{IntentLocation, []string{
		"وين مكانكم", "العنوان", "الموقع", "وين المحل", "كيف اوصل",
		"איפה אתם", "כתובת", "מיקום", "איך מגיעים",
	}},
	{IntentThanks, []string{
		"شكرا", "يعطيك العافية", "مشكور", "تسلم",
		"תודה", "תודה רבה",
	}},
	{IntentGoodbye, []string{
		"مع السلامة", "باي", "الى اللقاء", "يلا سلام",
		"להתראות", "ביי", "יאללה ביי",
	}},
	{IntentGreeting, []string{
		"مرحبا", "اهلا", "السلام عليكم", "هاي", "صباح الخير", "مساء الخير", "هلا",
		"שלום", "היי", "אהלן", "בוקר טוב", "ערב טוב",
	}},
}

// Classify matches normalized text against the keyword patterns. It is pure
// and side-effect free. A near-exact hit scores 1.0, a substring hit 0.85,
// and no match yields unknown with confidence 0. History is consulted only
// for bare affirmations, which inherit the previous user intent.
func Classify(text string, history []models.Message) Result {
	norm := Normalize(text)
	if norm == "" {
		return Result{Intent: IntentUnknown, Confidence: 0}
	}

	for _, p := range patterns {
		for _, phrase := range p.phrases {
			np := Normalize(phrase)
			if norm == np {
				return Result{Intent: p.intent, Confidence: 1.0}
			}
			if strings.Contains(norm, np) {
				return Result{Intent: p.intent, Confidence: 0.85}
			}
		}
	}

	if isAffirmation(norm) {
		if prev := lastUserIntent(history); prev != "" && prev != IntentUnknown {
			return Result{Intent: prev, Confidence: 0.8}
		}
	}

	return Result{Intent: IntentUnknown, Confidence: 0}
}

var affirmations = []string{"نعم", "اه", "ايوه", "اكيد", "כן", "בטח", "אוקיי", "ok"}

func isAffirmation(norm string) bool {
	for _, a := range affirmations {
		if norm == Normalize(a) {
			return true
		}
	}
	return false
}

func lastUserIntent(history []models.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == models.RoleUser && history[i].Intent != "" {
			return history[i].Intent
		}
	}
	return ""
}

// Normalize lowercases, folds common Arabic letter variants, and strips
// punctuation and diacritics so pattern matching survives informal spelling.
func Normalize(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(text)) {
		switch {
		case r == 'أ' || r == 'إ' || r == 'آ':
			b.WriteRune('ا')
		case r == 'ة':
			b.WriteRune('ه')
		case r == 'ى':
			b.WriteRune('ي')
		case unicode.Is(unicode.Mn, r): // tashkeel / niqqud
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// DetectLanguage reports "ar" or "he" from the dominant script, defaulting
// to "ar" when neither appears. The first detection sticks for the life of
// a conversation.
func DetectLanguage(text string) string {
	var arabic, hebrew int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Arabic, r):
			arabic++
		case unicode.Is(unicode.Hebrew, r):
			hebrew++
		}
	}
	if hebrew > arabic {
		return "he"
	}
	return "ar"
}
