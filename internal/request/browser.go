// internal/request/browser.go
package request

import (
	"context"

	"github.com/foiahound/foiahound/api/schemas"
)

// Browser is the subset of a browser session the submitter drives.
type Browser interface {
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	VisibleText(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, name string) (schemas.Screenshot, error)
	Click(ctx context.Context, selector string) error
	ClickAny(ctx context.Context, selectors []string) (string, error)
	ClickText(ctx context.Context, text string) error
	FillAny(ctx context.Context, selectors []string, value string) (string, error)
	SetValueDirect(ctx context.Context, selector, value string) error
	Evaluate(ctx context.Context, script string, res interface{}) error
	Exists(ctx context.Context, selector string) (bool, error)
	HumanPause(ctx context.Context) error
}
