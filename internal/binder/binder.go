package binder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vedsharma/analyze-request/internal/helpers"
	"github.com/vedsharma/analyze-request/internal/model"
)

// Store is the persistence the binder needs
type Store interface {
	List() ([]model.SavedRequest, error)
	GetByID(id string) (*model.SavedRequest, error)
	Create(args model.SaveArgs) (*model.SavedRequest, error)
	Update(id string, args model.SaveArgs) (*model.SavedRequest, error)
	UpdateLastResponse(id string, res model.ResponseRecord) (*model.SavedRequest, error)
	Delete(id string) error
}

// Origin tells the view where a displayed response came from
type Origin int

const (
	OriginLive Origin = iota
	OriginSaved
)

func (o Origin) String() string {
	if o == OriginSaved {
		return "saved"
	}
	return "live"
}

// UI is the form and response view the binder drives
type UI interface {
	// CurrentRequest returns the request held by the form, or an error
	// when the form fails validation.
	CurrentRequest() (*model.RequestSpec, error)
	// ApplyRequestToForm fills the form from a saved item, including its
	// name and description.
	ApplyRequestToForm(item model.SavedRequest)
	// ApplyDetails fills only the name and description fields
	ApplyDetails(name, description string)
	// ApplyResponseToView shows res, or clears the view when res is nil
	ApplyResponseToView(res *model.ResponseRecord, origin Origin)
	Confirm(prompt string) bool
}

// Executor runs a request. Failures are reported as the error variant of
// the returned record.
type Executor interface {
	Execute(ctx context.Context, req model.RequestSpec) model.ResponseRecord
}

// Action is what a save did
type Action int

const (
	ActionAborted Action = iota
	ActionCreated
	ActionUpdated
)

func (a Action) String() string {
	switch a {
	case ActionCreated:
		return "created"
	case ActionUpdated:
		return "updated"
	default:
		return "aborted"
	}
}

// Outcome is the result of Save. Item is nil when the save was aborted.
type Outcome struct {
	Action Action
	Item   *model.SavedRequest
}

// Binder applies the save, load and binding policies between a UI and a Store
type Binder struct {
	store  Store
	ui     UI
	logger *slog.Logger
}

// New creates a binder
func New(store Store, ui UI, logger *slog.Logger) *Binder {
	if logger == nil {
		logger = helpers.NewNoopLogger()
	}
	return &Binder{store: store, ui: ui, logger: logger}
}

func (b *Binder) stale(sess *Session, id string) error {
	sess.ClearSelection()
	b.logger.Warn("selected request no longer exists", slog.String("id", id))
	return &StaleSelectionError{ID: id}
}

func (b *Binder) currentRequest() (model.RequestSpec, error) {
	req, err := b.ui.CurrentRequest()
	if err != nil {
		return model.RequestSpec{}, &InvalidFormError{Err: err}
	}
	if req == nil {
		return model.RequestSpec{}, &InvalidFormError{}
	}
	return *req, nil
}

// Save stores the form's request under name. A selected item is updated
// after confirmation; otherwise a same-named item is offered for overwrite
// before a new item is created.
func (b *Binder) Save(sess *Session, name, description string) (Outcome, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if name == "" {
		return Outcome{}, ErrNameRequired
	}

	req, err := b.currentRequest()
	if err != nil {
		return Outcome{}, err
	}

	args := model.SaveArgs{
		Name:         name,
		Description:  description,
		Request:      req,
		LastResponse: sess.ResponseFor(req),
	}

	if sess.SelectedID != "" {
		return b.overwriteSelected(sess, args)
	}

	items, err := b.store.List()
	if err != nil {
		return Outcome{}, err
	}
	for _, item := range items {
		if item.Name != name {
			continue
		}
		if b.ui.Confirm(fmt.Sprintf("A saved request named %q exists. Overwrite it?", item.Name)) {
			updated, err := b.store.Update(item.ID, args)
			if err != nil {
				return Outcome{}, err
			}
			if updated != nil {
				sess.SelectedID = updated.ID
				return Outcome{Action: ActionUpdated, Item: updated}, nil
			}
		}
		break
	}

	created, err := b.store.Create(args)
	if err != nil {
		return Outcome{}, err
	}
	sess.SelectedID = created.ID
	b.logger.Debug("saved new request", slog.String("id", created.ID))
	return Outcome{Action: ActionCreated, Item: created}, nil
}

func (b *Binder) overwriteSelected(sess *Session, args model.SaveArgs) (Outcome, error) {
	id := sess.SelectedID

	selected, err := b.store.GetByID(id)
	if err != nil {
		return Outcome{}, err
	}
	if selected == nil {
		return Outcome{}, b.stale(sess, id)
	}

	if !b.ui.Confirm(fmt.Sprintf("Overwrite %q?", selected.Name)) {
		return Outcome{Action: ActionAborted}, nil
	}

	updated, err := b.store.Update(id, args)
	if err != nil {
		return Outcome{}, err
	}
	if updated == nil {
		return Outcome{}, b.stale(sess, id)
	}
	return Outcome{Action: ActionUpdated, Item: updated}, nil
}

// Load selects id and applies the saved request and its last response
func (b *Binder) Load(sess *Session, id string) (*model.SavedRequest, error) {
	if id == "" {
		return nil, ErrNoSelection
	}

	item, err := b.store.GetByID(id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, b.stale(sess, id)
	}

	sess.SelectedID = item.ID
	b.ui.ApplyRequestToForm(*item)
	b.ui.ApplyResponseToView(item.LastResponse, OriginSaved)
	return item, nil
}

// Select changes the selection without touching the form request. The
// name and description fields follow the selected item. An empty id
// clears the selection.
func (b *Binder) Select(sess *Session, id string) error {
	sess.SelectedID = id
	if id == "" {
		return nil
	}

	item, err := b.store.GetByID(id)
	if err != nil {
		return err
	}
	if item == nil {
		return b.stale(sess, id)
	}

	b.ui.ApplyDetails(item.Name, item.Description)
	return nil
}

// Delete removes id after confirmation and clears the selection. An empty
// id means the current selection. It reports whether anything was deleted.
func (b *Binder) Delete(sess *Session, id string) (bool, error) {
	if id == "" {
		id = sess.SelectedID
	}
	if id == "" {
		return false, ErrNoSelection
	}

	item, err := b.store.GetByID(id)
	if err != nil {
		return false, err
	}
	if item == nil {
		return false, b.stale(sess, id)
	}

	if !b.ui.Confirm(fmt.Sprintf("Delete %q?", item.Name)) {
		return false, nil
	}

	if err := b.store.Delete(id); err != nil {
		return false, err
	}
	sess.ClearSelection()
	return true, nil
}

// RecordExecution remembers an execution, shows its result and binds it to
// the selected item when that item's request is exactly req. The bound item
// is returned, or nil when nothing was bound.
func (b *Binder) RecordExecution(sess *Session, req model.RequestSpec, res model.ResponseRecord) (*model.SavedRequest, error) {
	res = res.Live()
	sess.Record(req, res)
	b.ui.ApplyResponseToView(&res, OriginLive)

	id := sess.SelectedID
	if id == "" {
		return nil, nil
	}

	item, err := b.store.GetByID(id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, b.stale(sess, id)
	}
	if !item.Request.Equal(req) {
		b.logger.Debug("sent request differs from selection, not binding", slog.String("id", id))
		return nil, nil
	}

	bound, err := b.store.UpdateLastResponse(id, res)
	if err != nil {
		return nil, err
	}
	if bound == nil {
		return nil, b.stale(sess, id)
	}
	b.logger.Debug("bound response to saved request", slog.String("id", id))
	return bound, nil
}

// Send executes the form's request and records the result
func (b *Binder) Send(ctx context.Context, sess *Session, exec Executor) (model.ResponseRecord, *model.SavedRequest, error) {
	req, err := b.currentRequest()
	if err != nil {
		return model.ResponseRecord{}, nil, err
	}

	res := exec.Execute(ctx, req)
	bound, err := b.RecordExecution(sess, req, res)
	return res, bound, err
}

// CurrentResponse returns the last result when it belongs to req
func (b *Binder) CurrentResponse(sess *Session, req model.RequestSpec) *model.ResponseRecord {
	return sess.ResponseFor(req)
}
