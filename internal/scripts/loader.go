package scripts

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/clefbot/clef/internal/chat"
	"github.com/clefbot/clef/internal/registry"
)

// TemplateLoader compiles a script file into a registry.Handler by reading
// its single line of template text and rendering it with the same
// {name}/{target}/{count}/{N} placeholder rules the channel-defined
// command database uses. The command's key is the file's base name
// without extension. Scripts have no backing count store, so {count}
// renders as 0.
type TemplateLoader struct{}

// NewTemplateLoader constructs a TemplateLoader.
func NewTemplateLoader() *TemplateLoader {
	return &TemplateLoader{}
}

// Load implements Loader.
func (l *TemplateLoader) Load(path string) (string, registry.Handler, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	tmpl := strings.TrimSpace(string(raw))
	key := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	handler := registry.Handler(func(ctx registry.Context) error {
		target := strings.Join(ctx.Args, " ")
		captures := make([]string, len(ctx.Args))
		copy(captures, ctx.Args)
		ctx.Respond(chat.RenderTemplate(tmpl, ctx.User, target, 0, captures))
		return nil
	})
	return key, handler, nil
}
