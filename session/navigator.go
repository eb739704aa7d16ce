package session

// Navigator is the host application's routing hook. The gate only ever
// asks for "navigate to path P"; history and rendering mechanics stay
// outside this module.
type Navigator interface {
	Navigate(path string)
}

// NavigateFunc adapts a plain function to Navigator.
type NavigateFunc func(path string)

func (f NavigateFunc) Navigate(path string) { f(path) }
