// internal/tracker/browser.go
package tracker

import (
	"context"

	"github.com/foiahound/foiahound/api/schemas"
)

// Browser is the subset of a browser session the tracker drives.
type Browser interface {
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	VisibleText(ctx context.Context) (string, error)
	PageHTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, name string) (schemas.Screenshot, error)
	Click(ctx context.Context, selector string) error
	ClickAny(ctx context.Context, selectors []string) (string, error)
	ClickText(ctx context.Context, text string) error
	Exists(ctx context.Context, selector string) (bool, error)
	Evaluate(ctx context.Context, script string, res interface{}) error
	ScrollToBottom(ctx context.Context) (int64, error)
	SetChecked(ctx context.Context, selector string, checked bool) error
	PressCtrlEnter(ctx context.Context) error
	SetValueDirect(ctx context.Context, selector, value string) error
	FillAny(ctx context.Context, selectors []string, value string) (string, error)
	NavigateBack(ctx context.Context) error
	HumanPause(ctx context.Context) error
}
