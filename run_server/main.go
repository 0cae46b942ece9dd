package main

import (
	"log"
	"os"

	"drift/server"
)

func main() {
	if err := server.Start(os.Args); err != nil {
		log.Fatal(err)
	}
}
