package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"github.com/leeguandong/mmhyperspectralcls/nnet"
	"github.com/leeguandong/mmhyperspectralcls/web"
)

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		fmt.Println("usage: web [opts] <model>")
		os.Exit(1)
	}
	model := os.Args[len(os.Args)-1]
	port := flag.Int("port", 8080, "web server port")
	auth := flag.Bool("auth", false, "login via PAM before serving pages")
	reset := flag.Bool("reset", false, "discard any saved training state")
	flag.Parse()

	if *reset {
		web.ResetNetwork(model)
	}
	net, err := web.NewNetwork(model)
	nnet.CheckErr(err)

	t, err := web.NewTemplates()
	nnet.CheckErr(err)
	t.AddMenuItem(web.Link{Url: "/train", Name: "train"})
	t.AddMenuItem(web.Link{Url: "/view", Name: "view"})
	t.AddMenuItem(web.Link{Url: "/config", Name: "config"})

	trainPage := web.NewTrainPage(t.Clone(), net)
	viewPage := web.NewViewPage(t.Clone(), net)
	configPage := web.NewConfigPage(t.Clone(), net)

	r := mux.NewRouter()
	r.Handle("/", http.RedirectHandler("/train", http.StatusFound))
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(web.AssetDir))))

	r.HandleFunc("/train", trainPage.Base())
	r.HandleFunc("/train/{cmd:(?:start|stop|continue)}", trainPage.Base())
	r.HandleFunc("/stats", trainPage.Stats())
	r.HandleFunc("/ws", trainPage.Websocket())

	r.HandleFunc("/view", viewPage.Base())
	r.HandleFunc("/map/{kind}", viewPage.Image())

	r.HandleFunc("/config", configPage.Base())
	r.HandleFunc("/config/load", configPage.Load())
	r.HandleFunc("/config/save", configPage.Save()).Methods("POST")
	r.HandleFunc("/config/reset", configPage.Reset())

	var handler http.Handler = r
	if *auth {
		handler = web.NewAuthMiddleware().Middleware(r)
	}
	fmt.Printf("serving web page at http://localhost:%d\n", *port)
	err = http.ListenAndServe(fmt.Sprintf(":%d", *port), handler)
	nnet.CheckErr(err)
}
