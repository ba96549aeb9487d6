package config

import "path/filepath"

// SassEntry is the Sass file compiled into style.css.
func (p PathsConfig) SassEntry() string {
	return filepath.Join(p.Src.Sass, p.Src.SassEntry)
}

// roles lists every configured location keyed by its config key.
func (p PathsConfig) roles() map[string]string {
	return map[string]string{
		"src.markup":        p.Src.Markup,
		"src.data":          p.Src.Data,
		"src.tailwind":      p.Src.Tailwind,
		"src.sass":          p.Src.Sass,
		"src.sass_entry":    p.Src.SassEntry,
		"src.images":        p.Src.Images,
		"src.scripts":       p.Src.Scripts,
		"src.vendor":        p.Src.Vendor,
		"src.concat":        p.Src.Concat,
		"temp.root":         p.Temp.Root,
		"temp.css":          p.Temp.CSS,
		"temp.css_compiled": p.Temp.CSSCompiled,
		"temp.js":           p.Temp.JS,
		"temp.images":       p.Temp.Images,
		"build.root":        p.Build.Root,
		"build.css":         p.Build.CSS,
		"build.js":          p.Build.JS,
		"build.images":      p.Build.Images,
		"lint_config":       p.LintConfig,
	}
}

// Rooted returns a copy of p with every relative location joined onto root.
// The CLI uses it for --root and tests use it to run against fixture trees.
func (p PathsConfig) Rooted(root string) PathsConfig {
	join := func(path string) string {
		if filepath.IsAbs(path) {
			return path
		}
		return filepath.Join(root, path)
	}

	p.Src.Markup = join(p.Src.Markup)
	p.Src.Data = join(p.Src.Data)
	p.Src.Tailwind = join(p.Src.Tailwind)
	p.Src.Sass = join(p.Src.Sass)
	p.Src.Images = join(p.Src.Images)
	p.Src.Scripts = join(p.Src.Scripts)
	p.Src.Vendor = join(p.Src.Vendor)
	p.Src.Concat = join(p.Src.Concat)
	p.Temp.Root = join(p.Temp.Root)
	p.Temp.CSS = join(p.Temp.CSS)
	p.Temp.CSSCompiled = join(p.Temp.CSSCompiled)
	p.Temp.JS = join(p.Temp.JS)
	p.Temp.Images = join(p.Temp.Images)
	p.Build.Root = join(p.Build.Root)
	p.Build.CSS = join(p.Build.CSS)
	p.Build.JS = join(p.Build.JS)
	p.Build.Images = join(p.Build.Images)
	p.LintConfig = join(p.LintConfig)

	return p
}
