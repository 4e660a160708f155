package main

import (
	"flag"
	"log"
	"os"

	"github.com/df07/go-sphere-tracer/web/server"
)

func main() {
	port := flag.Int("port", 8080, "Port to serve on")
	scenesDir := flag.String("scenes", "", "Directory of JSON scene files (default: ./scenes or ../scenes)")
	flag.Parse()

	webServer := server.NewServer(*port)
	if *scenesDir != "" {
		webServer = server.NewServerWithScenesDir(*port, *scenesDir)
	}

	log.Printf("Sphere Tracer Web Server")
	log.Printf("Stream a render with http://localhost:%d/api/render?scene=default", *port)

	if err := webServer.Start(); err != nil {
		log.Printf("Error starting server: %v", err)
		os.Exit(1)
	}
}
