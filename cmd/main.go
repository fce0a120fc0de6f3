package main

import (
	"github.com/crashfeed/reporter/internal/app"
	"github.com/crashfeed/reporter/internal/config"
)

func main() {
	config.MustInit()
	app.MustNewApp().Run()
}
