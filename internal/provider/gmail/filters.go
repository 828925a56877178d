package gmail

import (
	"context"
	"fmt"

	"github.com/nhle/mailbridge/internal/model"
	"github.com/nhle/mailbridge/internal/provider"
)

// Filter templates recognized by CreateFilterFromTemplate.
const (
	TemplateFromToLabel        = "from-to-label"
	TemplateSubjectToLabel     = "subject-to-label"
	TemplateMailingListArchive = "mailing-list-archive"
)

// ListFilters returns all filters on the account.
func (a *Adapter) ListFilters(ctx context.Context) ([]model.Filter, error) {
	var list filterList
	if err := a.api.Get(ctx, "/settings/filters", &list); err != nil {
		return nil, a.wrapErr(fmt.Errorf("listing filters: %w", err))
	}

	filters := make([]model.Filter, 0, len(list.Filter))
	for _, f := range list.Filter {
		filters = append(filters, filterFromWire(f))
	}
	return filters, nil
}

// GetFilter fetches one filter by id.
func (a *Adapter) GetFilter(ctx context.Context, id string) (*model.Filter, error) {
	var f wireFilter
	if err := a.api.Get(ctx, "/settings/filters/"+id, &f); err != nil {
		if notFound(err) {
			return nil, &provider.NotFoundError{Kind: "filter", Name: id}
		}
		return nil, a.wrapErr(fmt.Errorf("fetching filter %s: %w", id, err))
	}

	filter := filterFromWire(f)
	return &filter, nil
}

// CreateFilter creates a filter from explicit criteria and action.
func (a *Adapter) CreateFilter(
	ctx context.Context, criteria model.FilterCriteria, action model.FilterAction,
) (*model.Filter, error) {
	body := wireFilter{
		Criteria: wireFilterCriteria{
			From:          criteria.From,
			To:            criteria.To,
			Subject:       criteria.Subject,
			Query:         criteria.Query,
			HasAttachment: criteria.HasAttachment,
		},
		Action: wireFilterAction{
			AddLabelIDs:    action.AddLabelIDs,
			RemoveLabelIDs: action.RemoveLabelIDs,
			Forward:        action.Forward,
		},
	}

	var created wireFilter
	if err := a.api.Post(ctx, "/settings/filters", body, &created); err != nil {
		return nil, a.wrapErr(fmt.Errorf("creating filter: %w", err))
	}

	filter := filterFromWire(created)
	return &filter, nil
}

// DeleteFilter removes one filter by id.
func (a *Adapter) DeleteFilter(ctx context.Context, id string) error {
	if err := a.api.Delete(ctx, "/settings/filters/"+id); err != nil {
		if notFound(err) {
			return &provider.NotFoundError{Kind: "filter", Name: id}
		}
		return a.wrapErr(fmt.Errorf("deleting filter %s: %w", id, err))
	}
	return nil
}

// CreateFilterFromTemplate expands a named template into concrete
// criteria and action, resolving the target label with get-or-create
// semantics. The mailing-list-archive template labels optionally;
// the other two require a label.
func (a *Adapter) CreateFilterFromTemplate(
	ctx context.Context, template, value, labelName string,
) (*model.Filter, error) {
	if value == "" {
		return nil, fmt.Errorf("filter template %q needs a match value", template)
	}

	var criteria model.FilterCriteria
	var action model.FilterAction
	labelRequired := true

	switch template {
	case TemplateFromToLabel:
		criteria.From = value
		action.RemoveLabelIDs = []string{"INBOX"}
	case TemplateSubjectToLabel:
		criteria.Subject = value
	case TemplateMailingListArchive:
		criteria.Query = fmt.Sprintf("list:%s", quoteTerm(value))
		action.RemoveLabelIDs = []string{"INBOX"}
		labelRequired = false
	default:
		return nil, fmt.Errorf("unknown filter template %q", template)
	}

	if labelName == "" && labelRequired {
		return nil, fmt.Errorf("filter template %q needs a label name", template)
	}
	if labelName != "" {
		label, err := a.GetOrCreateLabel(ctx, labelName)
		if err != nil {
			return nil, err
		}
		action.AddLabelIDs = []string{label.Label.ID}
	}

	return a.CreateFilter(ctx, criteria, action)
}

func filterFromWire(f wireFilter) model.Filter {
	return model.Filter{
		ID: f.ID,
		Criteria: model.FilterCriteria{
			From:          f.Criteria.From,
			To:            f.Criteria.To,
			Subject:       f.Criteria.Subject,
			Query:         f.Criteria.Query,
			HasAttachment: f.Criteria.HasAttachment,
		},
		Action: model.FilterAction{
			AddLabelIDs:    f.Action.AddLabelIDs,
			RemoveLabelIDs: f.Action.RemoveLabelIDs,
			Forward:        f.Action.Forward,
		},
	}
}
