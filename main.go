package main

import (
	"git.coderun.dev/coderun/coderun/src/website"
)

func main() {
	website.WebsiteCommand.Execute()
}
