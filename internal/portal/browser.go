// internal/portal/browser.go
package portal

import (
	"context"

	"github.com/foiahound/foiahound/api/schemas"
)

// Browser is the subset of a browser session the portal agent drives.
// Narrowed so tests can stand in a fake without launching Chrome.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	VisibleText(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, name string) (schemas.Screenshot, error)
	Click(ctx context.Context, selector string) error
	ClickAny(ctx context.Context, selectors []string) (string, error)
	ClickText(ctx context.Context, text string) error
	FillAny(ctx context.Context, selectors []string, value string) (string, error)
	Exists(ctx context.Context, selector string) (bool, error)
	Warmup(ctx context.Context) error
	HumanPause(ctx context.Context) error
	SaveCookies(ctx context.Context, path string) error
	LoadCookies(ctx context.Context, path string) (int, error)
}
