package main

import "github.com/felo/classifier-console/internal/app"

func main() {
	app.Execute()
}
