package fetch

import "strings"

// blockIndicators are phrases that show up on bot-challenge pages.
var blockIndicators = []string{"cloudflare", "access denied", "forbidden", "blocked", "captcha"}

// BlockedIndicators returns the bot-challenge phrases found in page.
// An empty result means the page looks like real content.
func BlockedIndicators(page string) []string {
	lower := strings.ToLower(page)
	var found []string
	for _, ind := range blockIndicators {
		if strings.Contains(lower, ind) {
			found = append(found, ind)
		}
	}
	return found
}
