package scaffold

import (
	"embed"
	"io/fs"
)

//go:embed templates
var embedded embed.FS

// templatesFS is the embedded template set rooted at templates/.
func templatesFS() fs.FS {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}
