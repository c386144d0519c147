package web

import (
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gorilla/sessions"
)

// AssetDir is the location of the html templates and static files.
var AssetDir = assetDir()

var sessionKey = []byte("ohl6yae2Eep8aido")

const sessionName = "hsicls"

func assetDir() string {
	if dir := os.Getenv("MMHYPERSPECTRAL_ASSETS"); dir != "" {
		return dir
	}
	return "assets"
}

// Templates wraps the parsed html templates with the main menu and the per
// page option links.
type Templates struct {
	*template.Template
	Menu    []Link
	Options []Link
	store   sessions.Store
}

type Link struct {
	Url      string
	Name     string
	Selected bool
	Submit   bool
}

// Load and parse templates and initialise main menu
func NewTemplates() (*Templates, error) {
	var err error
	t := &Templates{Menu: []Link{}, Options: []Link{}}
	t.Template, err = template.ParseGlob(path.Join(AssetDir, "*.html"))
	if err != nil {
		return nil, err
	}
	t.store = sessions.NewCookieStore(sessionKey)
	return t, err
}

func (t *Templates) Clone() *Templates {
	return &Templates{
		Template: t.Template,
		Menu:     append([]Link{}, t.Menu...),
		Options:  append([]Link{}, t.Options...),
		store:    t.store,
	}
}

func (t *Templates) Select(url string) *Templates {
	for i, key := range t.Menu {
		t.Menu[i].Selected = strings.HasPrefix(key.Url, url)
	}
	return t
}

func (t *Templates) AddMenuItem(l Link) *Templates {
	t.Menu = append(t.Menu, l)
	return t
}

func (t *Templates) AddOption(l Link) *Templates {
	t.Options = append(t.Options, l)
	return t
}

// session returns the per browser session used to pass messages between pages
func (t *Templates) session(r *http.Request) *sessions.Session {
	s, err := t.store.Get(r, sessionName)
	if err != nil {
		log.Println("session error:", err)
	}
	return s
}

func logError(w http.ResponseWriter, err error) {
	log.Println(err)
	http.Error(w, fmt.Sprint(err), http.StatusInternalServerError)
}
