package gmail

import (
	"context"
	"fmt"

	"github.com/nhle/mailbridge/internal/model"
	"github.com/nhle/mailbridge/internal/provider"
)

// ListLabels returns every label on the account, system and user.
func (a *Adapter) ListLabels(ctx context.Context) ([]model.Label, error) {
	var list labelList
	if err := a.api.Get(ctx, "/labels", &list); err != nil {
		return nil, a.wrapErr(fmt.Errorf("listing labels: %w", err))
	}

	labels := make([]model.Label, 0, len(list.Labels))
	for _, l := range list.Labels {
		labels = append(labels, labelFromWire(l))
	}
	return labels, nil
}

// CreateLabel creates a user label.
func (a *Adapter) CreateLabel(ctx context.Context, name string) (*model.Label, error) {
	if name == "" {
		return nil, fmt.Errorf("label name is empty")
	}

	var created wireLabel
	if err := a.api.Post(ctx, "/labels", wireLabel{Name: name}, &created); err != nil {
		return nil, a.wrapErr(fmt.Errorf("creating label %q: %w", name, err))
	}

	label := labelFromWire(created)
	return &label, nil
}

// UpdateLabel renames an existing label.
func (a *Adapter) UpdateLabel(ctx context.Context, id, newName string) (*model.Label, error) {
	var updated wireLabel
	body := wireLabel{ID: id, Name: newName}
	if err := a.api.Put(ctx, "/labels/"+id, body, &updated); err != nil {
		if notFound(err) {
			return nil, &provider.NotFoundError{Kind: "label", Name: id}
		}
		return nil, a.wrapErr(fmt.Errorf("updating label %s: %w", id, err))
	}

	label := labelFromWire(updated)
	return &label, nil
}

// DeleteLabel removes a label. Messages keep their other labels.
func (a *Adapter) DeleteLabel(ctx context.Context, id string) error {
	if err := a.api.Delete(ctx, "/labels/"+id); err != nil {
		if notFound(err) {
			return &provider.NotFoundError{Kind: "label", Name: id}
		}
		return a.wrapErr(fmt.Errorf("deleting label %s: %w", id, err))
	}
	return nil
}

// GetOrCreateLabel returns the label whose name matches exactly
// (case-sensitive), creating it when none does, and reports which
// branch was taken.
func (a *Adapter) GetOrCreateLabel(ctx context.Context, name string) (*model.LabelResult, error) {
	labels, err := a.ListLabels(ctx)
	if err != nil {
		return nil, err
	}

	for _, label := range labels {
		if label.Name == name {
			return &model.LabelResult{Label: label, Created: false}, nil
		}
	}

	created, err := a.CreateLabel(ctx, name)
	if err != nil {
		return nil, err
	}
	return &model.LabelResult{Label: *created, Created: true}, nil
}

// ModifyMessageLabels applies add/remove label changes to one
// message. Empty add and remove sets are a complete no-op: no API
// call is made.
func (a *Adapter) ModifyMessageLabels(
	ctx context.Context, id string, add, remove []string,
) error {
	if len(add) == 0 && len(remove) == 0 {
		return nil
	}

	body := modifyRequest{AddLabelIDs: add, RemoveLabelIDs: remove}
	if err := a.api.Post(ctx, "/messages/"+id+"/modify", body, nil); err != nil {
		if notFound(err) {
			return &provider.NotFoundError{Kind: "message", Name: id}
		}
		return a.wrapErr(fmt.Errorf("modifying message %s: %w", id, err))
	}
	return nil
}

// ModifyThreadLabels applies add/remove label changes to every
// message in one thread.
func (a *Adapter) ModifyThreadLabels(
	ctx context.Context, threadID string, add, remove []string,
) error {
	if len(add) == 0 && len(remove) == 0 {
		return nil
	}

	body := modifyRequest{AddLabelIDs: add, RemoveLabelIDs: remove}
	if err := a.api.Post(ctx, "/threads/"+threadID+"/modify", body, nil); err != nil {
		if notFound(err) {
			return &provider.NotFoundError{Kind: "thread", Name: threadID}
		}
		return a.wrapErr(fmt.Errorf("modifying thread %s: %w", threadID, err))
	}
	return nil
}

func labelFromWire(l wireLabel) model.Label {
	return model.Label{
		ID:             l.ID,
		Name:           l.Name,
		Type:           l.Type,
		MessagesTotal:  l.MessagesTotal,
		MessagesUnread: l.MessagesUnread,
	}
}
