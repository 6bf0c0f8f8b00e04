package ports

import "context"

type Notifier interface {
	Notify(ctx context.Context, recipient, text string) error
}
