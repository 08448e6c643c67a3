package main

import (
	"deepfake-service/app"
	"deepfake-service/pkg/observability"
)

func main() {
	observability.StartProfiling("deepfake-service")
	app.Run()
}
