package web

import (
	"fmt"
	"html/template"
	"image"
	"image/color"
	"image/png"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/leeguandong/mmhyperspectralcls/hsi"
)

// ViewPage handlers display the scene maps: false colour band composite,
// ground truth labels and the latest prediction.
type ViewPage struct {
	*Templates
	net *Network
}

type MapInfo struct {
	Kind string
	Desc string
	Url  string
}

type ClassInfo struct {
	Index    int
	Name     string
	Color    string
	Train    int
	Test     int
	Accuracy string
}

// Base data for handler functions to view the scene and prediction maps
func NewViewPage(t *Templates, net *Network) *ViewPage {
	p := &ViewPage{net: net}
	p.Templates = t.Select("/view")
	return p
}

// Handler function for the view template
func (p *ViewPage) Base() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.net.Lock()
		defer p.net.Unlock()
		if err := p.ExecuteTemplate(w, "view", p); err != nil {
			logError(w, err)
		}
	}
}

func (p *ViewPage) Heading() template.HTML {
	return p.net.heading()
}

// Maps lists the scene images to display
func (p *ViewPage) Maps() []MapInfo {
	s := p.net.scene
	maps := []MapInfo{
		{Kind: "composite", Desc: fmt.Sprintf("%s %dx%d [%d bands]", s.Name, s.Width, s.Height, s.Bands)},
		{Kind: "truth", Desc: "ground truth"},
	}
	if p.net.Pred != nil {
		maps = append(maps, MapInfo{Kind: "predicted", Desc: "prediction"})
	}
	ts := time.Now().Unix()
	for i := range maps {
		maps[i].Url = fmt.Sprintf("/map/%s?ts=%d", maps[i].Kind, ts)
	}
	return maps
}

// Results summarises the accuracy from the latest evaluation
func (p *ViewPage) Results() string {
	if p.net.Cm == nil {
		return "no evaluation yet - start a training run first"
	}
	cm := p.net.Cm
	return fmt.Sprintf("overall %.2f%%  average %.2f%%  kappa %.4f",
		100*cm.Overall(), 100*cm.Average(), cm.Kappa())
}

// Classes gives the legend with per class sample counts and accuracy
func (p *ViewPage) Classes() []ClassInfo {
	s := p.net.scene
	pal := hsi.Palette(s.NumClasses())
	var acc []float64
	if p.net.Cm != nil {
		acc = p.net.Cm.PerClass()
	}
	train := classCounts(s, p.net.split.Train)
	test := classCounts(s, p.net.split.Test)
	info := make([]ClassInfo, s.NumClasses())
	for i := range info {
		info[i] = ClassInfo{
			Index:    i + 1,
			Name:     s.Class[i],
			Color:    webColor(pal[i+1]),
			Train:    train[i+1],
			Test:     test[i+1],
			Accuracy: "-",
		}
		if acc != nil && !math.IsNaN(acc[i]) {
			info[i].Accuracy = fmt.Sprintf("%.2f%%", 100*acc[i])
		}
	}
	return info
}

// Handler function to render the scene maps as png images
func (p *ViewPage) Image() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.net.Lock()
		defer p.net.Unlock()
		s := p.net.scene
		var img image.Image
		switch mux.Vars(r)["kind"] {
		case "composite":
			red, green, blue := displayBands(s.Bands)
			img = s.Composite(red, green, blue)
		case "truth":
			img = s.ClassMap(nil)
		case "predicted":
			if p.net.Pred == nil {
				http.NotFound(w, r)
				return
			}
			img = s.ClassMap(s.PredictionRaster(p.net.split.All, p.net.Pred))
		default:
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-type", "image/png")
		png.Encode(w, img)
	}
}

// pick well separated bands for a false colour composite
func displayBands(bands int) (r, g, b int) {
	return (3 * bands) / 4, bands / 2, bands / 4
}

func classCounts(s *hsi.Scene, index []int) []int {
	counts := make([]int, s.NumClasses()+1)
	for _, ix := range index {
		counts[s.Labels[ix]]++
	}
	return counts
}

func webColor(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}
