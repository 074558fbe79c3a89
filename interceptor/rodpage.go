package interceptor

import (
	"github.com/go-rod/rod"
	"github.com/ysmood/gson"
)

// RodPage adapts *rod.Page to the package-local page interface Install
// depends on, isolating the exact shape of rod's EvalOnNewDocument/Expose
// return values to this one file.
type RodPage struct {
	*rod.Page
}

func (r RodPage) EvalOnNewDocument(js string) (interface{}, error) {
	return r.Page.EvalOnNewDocument(js)
}

func (r RodPage) Expose(binding string, fn func(gson.JSON) (interface{}, error)) (func() error, error) {
	return r.Page.Expose(binding, fn)
}
