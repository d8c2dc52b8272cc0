package disclosure

import (
	"regexp"
	"strings"
)

// Category 表示一类敏感信息。
type Category string

const (
	SSN        Category = "ssn"
	CreditCard Category = "credit_card"
	Bank       Category = "bank"
	Password   Category = "password"
	Email      Category = "email"
	Phone      Category = "phone"
	Address    Category = "address"
	Name       Category = "name"
	Birthdate  Category = "birthdate"
	Payment    Category = "payment"
)

var categoryLabels = map[Category]string{
	SSN:        "Social Security Number",
	CreditCard: "Credit Card Number",
	Bank:       "Bank Account Details",
	Password:   "Password/PIN",
	Email:      "Email Address",
	Phone:      "Phone Number",
	Address:    "Home Address",
	Name:       "Full Name",
	Birthdate:  "Date of Birth",
	Payment:    "Payment Method",
}

// Label 返回用于界面展示的类别名称。
func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

// Detector classifies utterances into sensitive-information signals.
type Detector interface {
	ClassifySolicitation(text string) []Category
	ClassifyDisclosure(text string) bool
}

// KeywordDetector is the default keyword/pattern Detector.
type KeywordDetector struct{}

func (KeywordDetector) ClassifySolicitation(text string) []Category {
	return ClassifySolicitation(text)
}

func (KeywordDetector) ClassifyDisclosure(text string) bool {
	return ClassifyDisclosure(text)
}

type solicitationBucket struct {
	category Category
	keywords []string
}

// solicitationBuckets 的顺序即类别输出顺序。
var solicitationBuckets = []solicitationBucket{
	{SSN, []string{"ssn", "social security", "security number", "###-##-####"}},
	{CreditCard, []string{"credit card", "card number", "visa", "mastercard", "amex", "####-####-####-####"}},
	{Bank, []string{"bank account", "account number", "routing number", "bank details"}},
	{Password, []string{"password", "pin", "password protected", "security code"}},
	{Email, []string{"email", "email address", "@"}},
	{Phone, []string{"phone number", "cell phone", "mobile number", "+1", "(", "call me at"}},
	{Address, []string{"address", "street", "zip code", "home address"}},
	{Name, []string{"name", "first name", "last name", "full name"}},
	{Birthdate, []string{"date of birth", "birthday", "born in", "age"}},
	{Payment, []string{"payment", "credit", "debit", "wire transfer", "itunes card", "google play"}},
}

// ClassifySolicitation 扫描来电方话语中索取敏感信息的措辞，每个类别至多返回一次。
func ClassifySolicitation(text string) []Category {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return nil
	}

	var matched []Category
	for _, bucket := range solicitationBuckets {
		for _, keyword := range bucket.keywords {
			if strings.Contains(normalized, keyword) {
				matched = append(matched, bucket.category)
				break
			}
		}
	}
	return matched
}

const months = `january|february|march|april|may|june|july|august|september|october|november|december`

var disclosurePatterns = map[Category]*regexp.Regexp{
	SSN:        regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b|\b\d{9}\b`),
	CreditCard: regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b|\b\d{4}[-\s]?\d{6}[-\s]?\d{5}\b`),
	Bank:       regexp.MustCompile(`(?i)\b(account|routing)( number)? is\b|\b\d{6,12}\b`),
	Password:   regexp.MustCompile(`(?i)\bmy (password|passcode|pin|security code)( number)? is\b|\b(password|passcode|pin) is\b`),
	Phone:      regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b|\(\d{3}\)\s*\d{3}`),
	Email:      regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`),
	Birthdate: regexp.MustCompile(`(?i)\b(0?[1-9]|1[0-2])/(0?[1-9]|[12]\d|3[01])/(\d{4}|\d{2})\b|\b\d{1,2}-\d{1,2}-\d{2,4}\b|` +
		`\b(` + months + `)\s+\d{1,2}(st|nd|rd|th)?\b|\b\d{1,2}(st|nd|rd|th)?\s+(of\s+)?(` + months + `)\b|\bi was born\b|\bmy (birthday|date of birth) is\b`),
	// 自我介绍只认大写开头的名字，避免 "call me back"、"I am busy" 之类的误判
	Name:    regexp.MustCompile(`(?i:\bmy (full |first |last )?name is\b|\bmy name's\b)|\b[Cc]all me [A-Z][a-z]+\b|\b[Ii] am [A-Z][a-z]+\b`),
	Address: regexp.MustCompile(`(?i)\bi live (at|on)\b|\bmy (home )?address is\b|\b\d{1,5}\s+\w+\s+(street|st|avenue|ave|road|rd|lane|ln|drive|dr|boulevard|blvd)\b`),
	Payment: regexp.MustCompile(`(?i)\bmy (credit|debit) card\b|\b(gift|itunes|google play) card (code|number) is\b|\bi('ll| will) (wire|transfer|send) (you )?(the )?(money|payment)\b|` +
		`\bpay(ing)? (you )?(by|with|via) (credit|debit|card|gift card|wire|transfer|bank transfer)\b`),
}

// ClassifyDisclosure 判断用户话语是否泄露了敏感信息；任一模式命中即返回 true。
func ClassifyDisclosure(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	for _, pattern := range disclosurePatterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// Categories 返回全部类别，顺序固定。
func Categories() []Category {
	out := make([]Category, 0, len(solicitationBuckets))
	for _, bucket := range solicitationBuckets {
		out = append(out, bucket.category)
	}
	return out
}
