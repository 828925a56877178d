package gmail

import (
	"fmt"
	"strings"

	"github.com/nhle/mailbridge/internal/model"
)

// systemLabels are the built-in label IDs whose folder names map onto
// `in:` query clauses rather than `label:` clauses.
var systemLabels = map[string]string{
	"INBOX":     "inbox",
	"SENT":      "sent",
	"TRASH":     "trash",
	"SPAM":      "spam",
	"DRAFT":     "drafts",
	"DRAFTS":    "drafts",
	"STARRED":   "starred",
	"IMPORTANT": "important",
}

// buildQuery translates provider-neutral search criteria into a Gmail
// query string. An all-zero criteria yields the empty query, which
// matches everything.
func buildQuery(criteria model.SearchCriteria) string {
	var clauses []string

	if criteria.Folder != "" {
		if in, ok := systemLabels[strings.ToUpper(criteria.Folder)]; ok {
			clauses = append(clauses, "in:"+in)
		} else {
			clauses = append(clauses, fmt.Sprintf("label:%s", quoteTerm(criteria.Folder)))
		}
	}
	if criteria.From != "" {
		clauses = append(clauses, "from:"+quoteTerm(criteria.From))
	}
	if criteria.To != "" {
		clauses = append(clauses, "to:"+quoteTerm(criteria.To))
	}
	if criteria.Subject != "" {
		clauses = append(clauses, "subject:"+quoteTerm(criteria.Subject))
	}
	if !criteria.Since.IsZero() {
		clauses = append(clauses, "after:"+criteria.Since.Format("2006/01/02"))
	}
	if !criteria.Before.IsZero() {
		clauses = append(clauses, "before:"+criteria.Before.Format("2006/01/02"))
	}
	if criteria.UnreadOnly {
		clauses = append(clauses, "is:unread")
	}
	if criteria.Flagged {
		clauses = append(clauses, "is:starred")
	}
	if criteria.BodyText != "" {
		clauses = append(clauses, quoteTerm(criteria.BodyText))
	}

	return strings.Join(clauses, " ")
}

// quoteTerm wraps a term in double quotes when it contains whitespace,
// so multi-word values stay one clause.
func quoteTerm(term string) string {
	if strings.ContainsAny(term, " \t") {
		return `"` + term + `"`
	}
	return term
}
