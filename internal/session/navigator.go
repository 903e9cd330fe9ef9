package session

import "context"

// Navigator moves the surrounding application to a named view.
type Navigator interface {
	Navigate(ctx context.Context, view View)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, view View)

func (f NavigatorFunc) Navigate(ctx context.Context, view View) {
	f(ctx, view)
}

type nopNavigator struct{}

func (nopNavigator) Navigate(context.Context, View) {}
