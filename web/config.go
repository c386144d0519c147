package web

import (
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/leeguandong/mmhyperspectralcls/nnet"
)

// ConfigPage handlers view and update the model configuration.
type ConfigPage struct {
	*Templates
	Fields  []Field
	Layers  []Layer
	Message string
	net     *Network
}

type Field struct {
	Name    string
	Value   string
	Error   string
	Boolean bool
	On      bool
}

type Layer struct {
	Index int
	Desc  string
}

// Base data for handler functions to view and update the network config
func NewConfigPage(t *Templates, net *Network) *ConfigPage {
	p := &ConfigPage{net: net}
	p.Templates = t.Select("/config")
	p.AddOption(Link{Name: "save", Url: "/config/save", Submit: true})
	p.AddOption(Link{Name: "reset", Url: "/config/reset"})
	p.update()
	return p
}

func (p *ConfigPage) update() {
	p.Fields = getFields(p.net.Conf)
	p.Layers = getLayers(p.net.Conf)
}

// Handler function for the config template
func (p *ConfigPage) Base() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.net.Lock()
		defer p.net.Unlock()
		p.Message = ""
		s := p.session(r)
		if flashes := s.Flashes(); len(flashes) > 0 {
			p.Message = fmt.Sprint(flashes[0])
			s.Save(r, w)
		}
		if err := p.ExecuteTemplate(w, "config", p); err != nil {
			logError(w, err)
		}
	}
}

// Handler function for the action to load a new model
func (p *ConfigPage) Load() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.net.Lock()
		defer p.net.Unlock()
		model := r.FormValue("model")
		log.Println("load model:", model)
		data, err := LoadNetwork(model, false)
		if err != nil {
			logError(w, err)
			return
		}
		if err = p.net.swap(data); err != nil {
			logError(w, err)
			return
		}
		p.update()
		http.Redirect(w, r, "/config", http.StatusFound)
	}
}

// Handler function for the config form save action
func (p *ConfigPage) Save() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.net.Lock()
		defer p.net.Unlock()
		r.ParseForm()
		haveErrors := false
		conf := p.net.Conf
		for i, fld := range p.Fields {
			var err error
			if fld.Boolean {
				on := r.Form.Get(fld.Name) == "true"
				p.Fields[i].On = on
				conf, err = conf.SetBool(fld.Name, on)
			} else {
				val := r.Form.Get(fld.Name)
				p.Fields[i].Value = val
				conf, err = conf.SetString(fld.Name, val)
			}
			p.Fields[i].Error = ""
			if err != nil {
				p.Fields[i].Error = "invalid syntax"
				haveErrors = true
			}
		}
		s := p.session(r)
		if !haveErrors {
			if err := conf.Validate(); err != nil {
				s.AddFlash(err.Error())
			} else if err := conf.Save(p.net.Model + ".net"); err != nil {
				logError(w, err)
				return
			} else {
				p.net.Conf = conf
				p.net.updated = true
				p.update()
				s.AddFlash("config saved - press start to apply")
			}
			s.Save(r, w)
		}
		http.Redirect(w, r, "/config", http.StatusFound)
	}
}

// Handler function to restore the default config for this model
func (p *ConfigPage) Reset() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.net.Lock()
		defer p.net.Unlock()
		conf, err := nnet.LoadConfig(p.net.Model + ".default")
		if err != nil {
			logError(w, err)
			return
		}
		if err = conf.Save(p.net.Model + ".net"); err != nil {
			logError(w, err)
			return
		}
		ResetNetwork(p.net.Model)
		p.net.Conf = conf
		p.net.updated = true
		p.update()
		http.Redirect(w, r, "/config", http.StatusFound)
	}
}

// Heading lists the models with a saved config for the selector
func (p *ConfigPage) Heading() template.HTML {
	files, err := os.ReadDir(nnet.DataDir)
	if err != nil {
		log.Println("error reading model dir:", err)
		return ""
	}
	html := `model: <select name="model" class="model-select" form="loadConfig" onchange="this.form.submit()">`
	for _, file := range files {
		name := file.Name()
		if strings.HasSuffix(name, ".net") {
			name = strings.TrimSuffix(name, ".net")
			if name == p.net.Model {
				html += "<option selected>" + name + "</option>"
			} else {
				html += "<option>" + name + "</option>"
			}
		}
	}
	html += "</select>"
	return template.HTML(html)
}

func getFields(conf nnet.Config) []Field {
	var flds []Field
	for _, key := range conf.Fields() {
		f := Field{Name: key, Value: fmt.Sprint(conf.Get(key))}
		f.On, f.Boolean = conf.Get(key).(bool)
		flds = append(flds, f)
	}
	return flds
}

func getLayers(conf nnet.Config) []Layer {
	layers := make([]Layer, len(conf.Layers))
	for i, l := range conf.Layers {
		layers[i] = Layer{Index: i, Desc: l.String()}
	}
	return layers
}
