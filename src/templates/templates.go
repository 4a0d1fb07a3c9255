package templates

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"sort"
	"strings"

	"git.coderun.dev/coderun/coderun/src/config"
	"git.coderun.dev/coderun/coderun/src/crurl"
	"git.coderun.dev/coderun/coderun/src/logging"
	"git.coderun.dev/coderun/coderun/src/oops"
	"git.coderun.dev/coderun/coderun/src/utils"
	"git.coderun.dev/coderun/coderun/src/validate"
	"github.com/Masterminds/sprig"
	"github.com/teacat/noire"
)

//go:embed src
var embeddedTemplateFs embed.FS
var embeddedTemplates map[string]*template.Template

func getTemplatesFromFS(templateFS fs.ReadDirFS) (map[string]*template.Template, map[string]error) {
	templates := make(map[string]*template.Template)
	errs := make(map[string]error)

	files := utils.Must1(templateFS.ReadDir("src"))
	for _, f := range files {
		if hasSuffix(f.Name(), ".html") {
			t := template.New(f.Name())
			t = t.Funcs(sprig.FuncMap())
			t = t.Funcs(CodeRunTemplateFuncs)
			t, err := t.ParseFS(templateFS,
				"src/layouts/*",
				"src/include/*",
				"src/"+f.Name(),
			)
			if err != nil {
				errs[f.Name()] = err
				continue
			}

			templates[f.Name()] = t
		} else if hasSuffix(f.Name(), ".css", ".js") {
			t := template.New(f.Name())
			t = t.Funcs(sprig.FuncMap())
			t = t.Funcs(CodeRunTemplateFuncs)
			t, err := t.ParseFS(templateFS, "src/"+f.Name())
			if err != nil {
				errs[f.Name()] = err
				continue
			}

			templates[f.Name()] = t
		}
	}

	return templates, errs
}

func Init() {
	var errs map[string]error
	type errEntry struct {
		name string
		err  error
	}

	embeddedTemplates, errs = getTemplatesFromFS(embeddedTemplateFs)
	if len(errs) > 0 {
		var errsList []errEntry
		for filename, err := range errs {
			errsList = append(errsList, errEntry{filename, err})
		}
		sort.Slice(errsList, func(i, j int) bool {
			return strings.Compare(errsList[i].name, errsList[j].name) < 0
		})
		for _, err := range errsList {
			logging.Error().Str("filename", err.name).Err(err.err).Msg("Failed to parse template")
		}
		panic("Failed to parse templates; see above")
	}
}

// GetTemplate returns the named template. With live templates enabled the
// files are re-read from disk on every call, so edits show up on refresh.
func GetTemplate(name string) *template.Template {
	var templates map[string]*template.Template
	if config.Config.DevConfig.LiveTemplates {
		var errs map[string]error
		templates, errs = getTemplatesFromFS(os.DirFS("src/templates").(fs.ReadDirFS))
		if errs[name] != nil {
			panic(oops.New(errs[name], "Error in template %s", name))
		}
	} else {
		if embeddedTemplates == nil {
			Init()
		}
		templates = embeddedTemplates
	}

	template, hasTemplate := templates[name]
	if !hasTemplate {
		panic(oops.New(nil, "Template not found: %s", name))
	}
	return template
}

func hasSuffix(s string, suffixes ...string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}

// Brand colours. Everything else in the stylesheet is derived from these.
var (
	ColorPrimary = noire.NewHex("01bf71")
	ColorNeutral = noire.NewHex("eeeeee")
	ColorInvalid = noire.NewHex("ffdcdc")
	ColorText    = noire.NewHex("1f1f1f")
)

// StatusColor is the field background for a validation status.
func StatusColor(status validate.Status) noire.Color {
	switch status {
	case validate.Valid:
		return ColorNeutral
	case validate.Invalid:
		return ColorInvalid
	default:
		return ColorNeutral.Tint(0.5)
	}
}

// StatusColors maps each status name to its CSS colour, for page scripts
// that colour fields from a JSON status response.
func StatusColors() map[string]string {
	colors := map[string]string{}
	for _, status := range []validate.Status{validate.Neutral, validate.Valid, validate.Invalid} {
		colors[status.String()] = StatusColor(status).HTML()
	}
	return colors
}

var CodeRunTemplateFuncs = template.FuncMap{
	"alpha": func(alpha float64, color noire.Color) noire.Color {
		color.Alpha = alpha
		return color
	},
	"brighten": func(amount float64, color noire.Color) noire.Color {
		return color.Tint(amount)
	},
	"color2css": func(color noire.Color) template.CSS {
		return template.CSS(color.HTML())
	},
	"darken": func(amount float64, color noire.Color) noire.Color {
		return color.Shade(amount)
	},
	"primarycolor": func() noire.Color { return ColorPrimary },
	"textcolor":    func() noire.Color { return ColorText },
	"statuscolor":  StatusColor,
	"statuscolors": StatusColors,
	"static": func(filepath string) string {
		return crurl.BuildAsset(filepath)
	},
	"filesize": func(numBytes int64) string {
		scales := []string{
			" bytes",
			"kb",
			"mb",
			"gb",
		}
		num := float64(numBytes)
		scale := 0
		for num > 1024 && scale < len(scales)-1 {
			num /= 1024
			scale += 1
		}
		precision := 0
		if scale > 0 {
			precision = 2
		}
		return fmt.Sprintf("%.*f%s", precision, num, scales[scale])
	},
}
