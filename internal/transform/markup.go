package transform

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/stage"
	"gopkg.in/yaml.v3"
)

// PageData is the value every page template executes with.
type PageData struct {
	// Site holds the decoded site data file, nil when there is none.
	Site map[string]interface{}
	// Page is the page file name without extension.
	Page string
}

// Markup renders pages with html/template. The matched files are the pages;
// every *.html file in a subdirectory of root is a partial, available to
// pages under its slash-separated path relative to root
// ({{template "partials/nav.html" .}}). dataFile is optional YAML.
func Markup(root, dataFile, outDir string) stage.Transform {
	return func(_ context.Context, pages []string) error {
		site, err := loadSiteData(dataFile)
		if err != nil {
			return err
		}

		base, err := parsePartials(root)
		if err != nil {
			return err
		}

		for _, page := range pages {
			if err := renderPage(base, page, outDir, site); err != nil {
				return err
			}
		}
		return nil
	}
}

func loadSiteData(path string) (map[string]interface{}, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewIOError("", path, err)
	}

	var site map[string]interface{}
	if err := yaml.Unmarshal(data, &site); err != nil {
		return nil, errors.NewStageError("", "invalid site data", err).WithFile(path)
	}
	return site, nil
}

func parsePartials(root string) (*template.Template, error) {
	base := template.New("")

	partials, err := doublestar.FilepathGlob(filepath.Join(root, "*", "**", "*.html"), doublestar.WithFilesOnly())
	if err != nil {
		return nil, errors.NewIOError("", root, err)
	}

	for _, partial := range partials {
		rel, err := filepath.Rel(root, partial)
		if err != nil {
			return nil, errors.NewIOError("", partial, err)
		}
		src, err := stage.ReadFile(partial)
		if err != nil {
			return nil, err
		}
		if _, err := base.New(filepath.ToSlash(rel)).Parse(string(src)); err != nil {
			return nil, errors.NewStageError("", "invalid partial", err).WithFile(partial)
		}
	}

	return base, nil
}

func renderPage(base *template.Template, page, outDir string, site map[string]interface{}) error {
	src, err := stage.ReadFile(page)
	if err != nil {
		return err
	}

	set, err := base.Clone()
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeInternal, "clone templates", err)
	}

	name := filepath.Base(page)
	tmpl, err := set.New(name).Parse(string(src))
	if err != nil {
		return errors.NewStageError("", "invalid page template", err).WithFile(page)
	}

	var buf bytes.Buffer
	data := PageData{Site: site, Page: strings.TrimSuffix(name, filepath.Ext(name))}
	if err := tmpl.Execute(&buf, data); err != nil {
		return errors.NewStageError("", fmt.Sprintf("render %s", name), err).WithFile(page)
	}

	return stage.WriteFile(filepath.Join(outDir, name), buf.Bytes())
}
