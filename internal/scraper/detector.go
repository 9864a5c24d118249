package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var blockedTitles = []string{
	"request rejected",
	"access denied",
	"acesso negado",
	"attention required",
	"just a moment",
}

var blockedText = []string{
	"the requested url was rejected",
	"support id",
	"verifique que você não é um robô",
	"please enable cookies",
}

// DetectBlock inspects a page and reports whether it is an anti-bot or WAF
// rejection instead of site content, with a short reason.
func DetectBlock(html string) (string, bool) {
	if strings.TrimSpace(html) == "" {
		return "empty page", true
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}

	title := strings.ToLower(strings.TrimSpace(doc.Find("title").First().Text()))
	for _, marker := range blockedTitles {
		if strings.Contains(title, marker) {
			return "blocked page: " + title, true
		}
	}

	if doc.Find(".g-recaptcha, .h-captcha, #challenge-form, iframe[src*='captcha']").Length() > 0 {
		return "captcha challenge", true
	}

	text := strings.ToLower(strings.Join(strings.Fields(doc.Find("body").Text()), " "))
	for _, marker := range blockedText {
		if strings.Contains(text, marker) {
			return "blocked page: " + marker, true
		}
	}
	return "", false
}
