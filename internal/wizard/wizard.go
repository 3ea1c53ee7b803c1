// Package wizard drives the three-page configuration flow: identity, default
// rules, then schedules.
//
// Forward navigation is gated on the current page being valid. A blocked
// attempt never returns an error; it raises the highlight flag so the view
// renders every non-conforming field, and the flag drops by itself as soon as
// the page becomes valid again. Submission is the terminal action of the last
// page and additionally requires every schedule entry to be valid.
package wizard

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/nodecfg/internal/document"
	"github.com/muurk/nodecfg/internal/logging"
)

// Page is one wizard step.
type Page int

const (
	PageIdentity Page = iota
	PageRules
	PageSchedule
)

func (p Page) String() string {
	switch p {
	case PageIdentity:
		return "identity"
	case PageRules:
		return "rules"
	case PageSchedule:
		return "schedule"
	default:
		return fmt.Sprintf("Page(%d)", int(p))
	}
}

var (
	// ErrNotSubmittable is returned by Submit while any field is invalid.
	ErrNotSubmittable = errors.New("configuration has invalid fields")

	// ErrSessionEnded is returned once a submission has succeeded.
	ErrSessionEnded = errors.New("editing session has ended")
)

// Uploader sends the serialized document to the node.
type Uploader interface {
	Upload(ctx context.Context, payload []byte) error
}

// Controller owns the page state for one editing session.
type Controller struct {
	doc       *document.Document
	page      Page
	highlight bool
	done      bool
}

// New starts a session on doc at the identity page.
func New(doc *document.Document) *Controller {
	c := &Controller{doc: doc}
	doc.OnChange(c.onChange)
	return c
}

func (c *Controller) onChange(document.Change) {
	if c.highlight && c.pageClean() {
		c.highlight = false
	}
}

// pageClean reports whether the current page has nothing left to highlight.
// The schedule page is judged by submission readiness.
func (c *Controller) pageClean() bool {
	if c.page == PageSchedule {
		return c.Submittable()
	}
	return c.CanAdvance(c.page)
}

// Document returns the document being edited, or nil after a successful
// submission.
func (c *Controller) Document() *document.Document {
	return c.doc
}

// Page returns the current page.
func (c *Controller) Page() Page {
	return c.page
}

// HighlightInvalid reports whether every non-valid field should render its
// error state.
func (c *Controller) HighlightInvalid() bool {
	return c.highlight
}

// Done reports whether the session ended with a successful submission.
func (c *Controller) Done() bool {
	return c.done
}

// CanAdvance reports whether page p may be left forward. The schedule page
// has no guard.
func (c *Controller) CanAdvance(p Page) bool {
	if c.doc == nil {
		return false
	}
	return len(c.problems(p)) == 0
}

// Next moves forward when the current page is valid. A blocked attempt sets
// the highlight flag and returns false.
func (c *Controller) Next() bool {
	if c.done || c.page == PageSchedule {
		return false
	}
	if !c.CanAdvance(c.page) {
		c.highlight = true
		logging.Debug("Navigation blocked",
			zap.Stringer("page", c.page),
			zap.Int("invalid", len(c.problems(c.page))))
		return false
	}
	c.page++
	c.highlight = false
	return true
}

// Back moves to the previous page. It is always allowed.
func (c *Controller) Back() bool {
	if c.done || c.page == PageIdentity {
		return false
	}
	c.page--
	c.highlight = false
	return true
}

// Submittable reports whether every page and every schedule entry is valid.
func (c *Controller) Submittable() bool {
	if c.doc == nil {
		return false
	}
	for _, p := range []Page{PageIdentity, PageRules, PageSchedule} {
		if len(c.problems(p)) > 0 {
			return false
		}
	}
	return len(c.scheduleProblems()) == 0
}

// Submit uploads the document. While anything is invalid it raises the
// highlight flag and returns ErrNotSubmittable. Upload failures leave the
// document untouched; success ends the session and discards it.
func (c *Controller) Submit(ctx context.Context, up Uploader) error {
	if c.done {
		return ErrSessionEnded
	}
	if !c.Submittable() {
		c.highlight = true
		return fmt.Errorf("%w: %d field(s)", ErrNotSubmittable, len(c.allProblems()))
	}

	payload, err := c.doc.Snapshot()
	if err != nil {
		return err
	}

	logging.Info("Submitting configuration",
		zap.String("id", c.doc.Metadata().ID),
		zap.Int("instances", c.doc.Len()),
		zap.Int("bytes", len(payload)))

	if err := up.Upload(ctx, payload); err != nil {
		logging.Warn("Submission failed", zap.Error(err))
		return err
	}

	c.done = true
	c.doc = nil
	c.highlight = false
	return nil
}

// InvalidFields lists every field on page p that is not valid, including
// fields still being typed. The schedule page includes schedule entries.
func (c *Controller) InvalidFields(p Page) []FieldRef {
	var out []FieldRef
	for _, pr := range c.pageProblems(p) {
		out = append(out, pr.ref)
	}
	return out
}

// Highlighted lists the fields the view should mark on the current page.
// Without the highlight flag only outright invalid values are marked;
// values still being typed are not.
func (c *Controller) Highlighted() []FieldRef {
	var out []FieldRef
	for _, pr := range c.pageProblems(c.page) {
		if c.highlight || !pr.incomplete {
			out = append(out, pr.ref)
		}
	}
	return out
}

func (c *Controller) pageProblems(p Page) []problem {
	out := c.problems(p)
	if p == PageSchedule {
		out = append(out, c.scheduleProblems()...)
	}
	return out
}

func (c *Controller) allProblems() []problem {
	var out []problem
	for _, p := range []Page{PageIdentity, PageRules, PageSchedule} {
		out = append(out, c.pageProblems(p)...)
	}
	return out
}
